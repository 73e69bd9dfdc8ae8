package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DoyleJ11/warband-backend/internal/battle"
)

// Core tables owned by the battle lifecycle.

type battleRow struct {
	ID                 int64  `gorm:"primaryKey"`
	CampaignID         int64  `gorm:"not null;index"`
	BattleName         string `gorm:"size:255;not null"`
	TerrainDescription string
	Status             string `gorm:"size:32;not null;default:planning"`
	CurrentRound       int    `gorm:"not null;default:0"`
	TotalRounds        int    `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (battleRow) TableName() string { return "battles" }

type participantRow struct {
	ID               int64                         `gorm:"primaryKey"`
	BattleID         int64                         `gorm:"not null;index"`
	ArmyID           *int64                        `gorm:"index"`
	TeamName         string                        `gorm:"size:100;not null"`
	FactionColor     string                        `gorm:"size:20;not null;default:'#808080'"`
	IsTemporary      bool                          `gorm:"not null;default:false"`
	TempArmyName     string                        `gorm:"size:255"`
	TempArmyCategory string                        `gorm:"size:100"`
	TempArmyStats    *jsonColumn[battle.ArmyStats] `gorm:"type:jsonb"`
	PositionX        float64                       `gorm:"not null;default:50"`
	PositionY        float64                       `gorm:"not null;default:50"`
	CurrentTroops    int                           `gorm:"not null;default:100"`
	BaseScore        int                           `gorm:"not null;default:0"`
	CurrentScore     int                           `gorm:"not null;default:0"`
	HasSelectedGoal  bool                          `gorm:"not null;default:false"`
}

func (participantRow) TableName() string { return "battle_participants" }

// participantView is a participant joined with its persistent army.
type participantView struct {
	participantRow `gorm:"embedded"`
	ArmyName       *string
	ArmyCategory   *string
	ArmyNumbers    *int
	ArmyEquipment  *int
	ArmyDiscipline *int
	ArmyMorale     *int
	ArmyCommand    *int
	ArmyLogistics  *int
}

type goalRow struct {
	ID                  int64  `gorm:"primaryKey"`
	BattleID            int64  `gorm:"not null;uniqueIndex:idx_battle_goals_participant_round,priority:1;index:idx_battle_goals_round,priority:1"`
	RoundNumber         int    `gorm:"not null;uniqueIndex:idx_battle_goals_participant_round,priority:2;index:idx_battle_goals_round,priority:2"`
	ParticipantID       int64  `gorm:"not null;uniqueIndex:idx_battle_goals_participant_round,priority:3"`
	TeamName            string `gorm:"size:100"`
	GoalKey             string `gorm:"size:100"`
	GoalName            string `gorm:"size:255;not null"`
	TargetParticipantID *int64
	TestType            string `gorm:"size:50"`
	CharacterModifier   int    `gorm:"not null;default:0"`
	ArmyStatModifier    int    `gorm:"not null;default:0"`
	LockedIn            bool   `gorm:"not null;default:false"`
	DiceRoll            *int
	DCRequired          *int   `gorm:"column:dc_required"`
	Success             *bool
	ModifierApplied     int    `gorm:"not null;default:0"`
	ExecutorCredited    bool   `gorm:"not null;default:false"`
	CreatedAt           time.Time
}

func (goalRow) TableName() string { return "battle_goals" }

type invitationRow struct {
	ID           int64     `gorm:"primaryKey"`
	BattleID     int64     `gorm:"not null;uniqueIndex:idx_battle_invitations_player_battle,priority:2;index"`
	PlayerID     int64     `gorm:"not null;uniqueIndex:idx_battle_invitations_player_battle,priority:1"`
	TeamName     string    `gorm:"size:255;not null"`
	FactionColor string    `gorm:"size:7;not null;default:'#808080'"`
	Status       string    `gorm:"size:50;not null;default:pending"`
	InvitedAt    time.Time `gorm:"autoCreateTime"`
	RespondedAt  *time.Time
}

func (invitationRow) TableName() string { return "battle_invitations" }

// invitationView is an invitation joined with its battle.
type invitationView struct {
	invitationRow      `gorm:"embedded"`
	BattleName         string
	TerrainDescription string
	BattleStatus       string
	CurrentRound       int
}

type historyRow struct {
	ID              int64                     `gorm:"primaryKey"`
	ArmyID          int64                     `gorm:"not null;index"`
	BattleName      string                    `gorm:"size:255;not null"`
	StartScore      int                       `gorm:"not null"`
	EndScore        int                       `gorm:"not null"`
	EnemyName       string                    `gorm:"size:255;not null"`
	EnemyStartScore int                       `gorm:"not null"`
	EnemyEndScore   int                       `gorm:"not null"`
	Result          string                    `gorm:"size:50;not null"`
	GoalsChosen     jsonColumn[[]battle.Goal] `gorm:"type:jsonb"`
	BattleDate      time.Time                 `gorm:"autoCreateTime"`
}

func (historyRow) TableName() string { return "army_battle_history" }

func battleFromRow(r battleRow) *battle.Battle {
	return &battle.Battle{
		ID:           r.ID,
		CampaignID:   r.CampaignID,
		Name:         r.BattleName,
		Terrain:      r.TerrainDescription,
		Status:       battle.Status(r.Status),
		CurrentRound: r.CurrentRound,
		TotalRounds:  r.TotalRounds,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func participantFromView(v participantView) battle.Participant {
	r := v.participantRow
	p := battle.Participant{
		ID:              r.ID,
		BattleID:        r.BattleID,
		ArmyID:          r.ArmyID,
		IsTemporary:     r.IsTemporary,
		TempArmyName:    r.TempArmyName,
		TempCategory:    r.TempArmyCategory,
		TeamName:        r.TeamName,
		FactionColor:    r.FactionColor,
		PositionX:       r.PositionX,
		PositionY:       r.PositionY,
		CurrentTroops:   r.CurrentTroops,
		BaseScore:       r.BaseScore,
		CurrentScore:    r.CurrentScore,
		HasSelectedGoal: r.HasSelectedGoal,
	}
	if r.IsTemporary {
		if r.TempArmyStats != nil {
			p.Stats = r.TempArmyStats.Val
		}
		return p
	}
	p.ArmyName = deref(v.ArmyName)
	p.ArmyCategory = deref(v.ArmyCategory)
	p.Stats = battle.ArmyStats{
		Numbers:    deref(v.ArmyNumbers),
		Equipment:  deref(v.ArmyEquipment),
		Discipline: deref(v.ArmyDiscipline),
		Morale:     deref(v.ArmyMorale),
		Command:    deref(v.ArmyCommand),
		Logistics:  deref(v.ArmyLogistics),
	}
	return p
}

func goalFromRow(r goalRow) battle.Goal {
	return battle.Goal{
		ID:                  r.ID,
		BattleID:            r.BattleID,
		RoundNumber:         r.RoundNumber,
		ParticipantID:       r.ParticipantID,
		TeamName:            r.TeamName,
		GoalKey:             r.GoalKey,
		GoalName:            r.GoalName,
		TargetParticipantID: r.TargetParticipantID,
		TestType:            r.TestType,
		CharacterModifier:   r.CharacterModifier,
		ArmyStatModifier:    r.ArmyStatModifier,
		LockedIn:            r.LockedIn,
		DiceRoll:            r.DiceRoll,
		DCRequired:          r.DCRequired,
		Success:             r.Success,
		ModifierApplied:     r.ModifierApplied,
		ExecutorCredited:    r.ExecutorCredited,
	}
}

func invitationFromRow(r invitationRow) battle.Invitation {
	return battle.Invitation{
		ID:           r.ID,
		BattleID:     r.BattleID,
		PlayerID:     r.PlayerID,
		TeamName:     r.TeamName,
		FactionColor: r.FactionColor,
		Status:       battle.InvitationStatus(r.Status),
		InvitedAt:    r.InvitedAt,
		RespondedAt:  r.RespondedAt,
	}
}

func invitationFromView(v invitationView) battle.Invitation {
	inv := invitationFromRow(v.invitationRow)
	inv.BattleName = v.BattleName
	inv.Terrain = v.TerrainDescription
	inv.BattleStatus = battle.Status(v.BattleStatus)
	inv.CurrentRound = v.CurrentRound
	return inv
}

func historyToRow(h *battle.ArmyHistory) historyRow {
	return historyRow{
		ArmyID:          h.ArmyID,
		BattleName:      h.BattleName,
		StartScore:      h.StartScore,
		EndScore:        h.EndScore,
		EnemyName:       h.EnemyName,
		EnemyStartScore: h.EnemyStartScore,
		EnemyEndScore:   h.EnemyEndScore,
		Result:          string(h.Result),
		GoalsChosen:     jsonColumn[[]battle.Goal]{Val: h.GoalsChosen},
	}
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}

// Collaborator tables. The battle and combat code reads these but never
// manages their lifecycle.

type armyRow struct {
	ID         int64  `gorm:"primaryKey"`
	CampaignID int64  `gorm:"index"`
	Name       string `gorm:"size:255;not null"`
	Category   string `gorm:"size:100"`
	Numbers    int    `gorm:"not null;default:5"`
	Equipment  int    `gorm:"not null;default:5"`
	Discipline int    `gorm:"not null;default:5"`
	Morale     int    `gorm:"not null;default:5"`
	Command    int    `gorm:"not null;default:5"`
	Logistics  int    `gorm:"not null;default:5"`
}

func (armyRow) TableName() string { return "armies" }

type characterRow struct {
	ID            int64                      `gorm:"primaryKey"`
	CampaignID    int64                      `gorm:"index"`
	Name          string                     `gorm:"size:255;not null"`
	Class         string                     `gorm:"size:100"`
	Level         int                        `gorm:"not null;default:1"`
	Abilities     jsonColumn[map[string]int] `gorm:"type:jsonb"`
	MovementSpeed *int                       `gorm:"default:30"`
	CombatActive  bool                       `gorm:"not null;default:false"`
}

func (characterRow) TableName() string { return "characters" }

type beastRow struct {
	ID          int64  `gorm:"primaryKey"`
	CharacterID int64  `gorm:"uniqueIndex;not null"`
	BeastType   string `gorm:"size:50;not null"`
	BeastName   string `gorm:"size:100"`
	Speed       *int
}

func (beastRow) TableName() string { return "character_beasts" }

type monsterRow struct {
	ID         int64                       `gorm:"primaryKey"`
	CampaignID int64                       `gorm:"index"`
	Name       string                      `gorm:"size:255;not null"`
	LimbHealth jsonColumn[json.RawMessage] `gorm:"type:jsonb"`
}

func (monsterRow) TableName() string { return "monsters" }

type monsterInstanceRow struct {
	ID                int64                       `gorm:"primaryKey"`
	MonsterID         int64                       `gorm:"not null;index:idx_monster_instances_lookup,priority:2"`
	CampaignID        int64                       `gorm:"not null;index:idx_monster_instances_lookup,priority:1"`
	InstanceNumber    int                         `gorm:"not null"`
	CurrentLimbHealth jsonColumn[json.RawMessage] `gorm:"type:jsonb"`
	InCombat          bool                        `gorm:"not null;default:true"`
	Initiative        int
	CreatedAt         time.Time
}

func (monsterInstanceRow) TableName() string { return "monster_instances" }

// jsonColumn stores any JSON-encodable value in a jsonb column.
type jsonColumn[T any] struct {
	Val T
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.Val)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *jsonColumn[T]) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		var zero T
		c.Val = zero
		return nil
	case []byte:
		return json.Unmarshal(v, &c.Val)
	case string:
		return json.Unmarshal([]byte(v), &c.Val)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
