package battle

import (
	"cmp"
	"time"
)

type Result string

const (
	ResultVictory   Result = "victory"
	ResultDefeat    Result = "defeat"
	ResultStalemate Result = "stalemate"
)

// ArmyHistory is one persistent army's record of a completed battle, measured
// against the best scoring participant of any other team.
type ArmyHistory struct {
	ID              int64     `json:"id"`
	ArmyID          int64     `json:"army_id"`
	BattleName      string    `json:"battle_name"`
	StartScore      int       `json:"start_score"`
	EndScore        int       `json:"end_score"`
	EnemyName       string    `json:"enemy_name"`
	EnemyStartScore int       `json:"enemy_start_score"`
	EnemyEndScore   int       `json:"enemy_end_score"`
	Result          Result    `json:"result"`
	GoalsChosen     []Goal    `json:"goals_chosen"`
	BattleDate      time.Time `json:"battle_date"`
}

// ResultOf classifies a final score difference against the top opponent.
func ResultOf(diff int) Result {
	switch {
	case diff >= 1:
		return ResultVictory
	case diff < 0:
		return ResultDefeat
	default:
		return ResultStalemate
	}
}

// buildHistory derives the history rows of a completed battle. ps must be
// ordered by current score, highest first; on tied opponents the first wins.
// Temporary participants and sides without an opposing team get no row.
func buildHistory(b *Battle, ps []Participant, gs []Goal) []ArmyHistory {
	var out []ArmyHistory
	for _, p := range ps {
		if p.IsTemporary || p.ArmyID == nil {
			continue
		}
		enemy, ok := topOpponent(p, ps)
		if !ok {
			continue
		}
		chosen := []Goal{}
		for _, g := range gs {
			if g.ParticipantID == p.ID {
				chosen = append(chosen, g)
			}
		}
		out = append(out, ArmyHistory{
			ArmyID:          *p.ArmyID,
			BattleName:      b.Name,
			StartScore:      p.BaseScore,
			EndScore:        p.CurrentScore,
			EnemyName:       cmp.Or(enemy.TempArmyName, enemy.ArmyName, "Unknown"),
			EnemyStartScore: enemy.BaseScore,
			EnemyEndScore:   enemy.CurrentScore,
			Result:          ResultOf(p.CurrentScore - enemy.CurrentScore),
			GoalsChosen:     chosen,
		})
	}
	return out
}

func topOpponent(p Participant, ps []Participant) (Participant, bool) {
	var top Participant
	found := false
	for _, o := range ps {
		if o.TeamName == p.TeamName {
			continue
		}
		if !found || o.CurrentScore > top.CurrentScore {
			top, found = o, true
		}
	}
	return top, found
}
