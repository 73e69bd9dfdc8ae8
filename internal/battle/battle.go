package battle

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrConflict          = errors.New("conflict")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrGoalNotEligible   = errors.New("goal not eligible for army category")
	ErrRoundLimit        = errors.New("battle already at its final round")
)

const (
	DefaultFactionColor = "#808080"
	DefaultPosition     = 50.0
	DefaultTroops       = 100
	DefaultTempCategory = "Swordsmen"
)

type Battle struct {
	ID           int64     `json:"id"`
	CampaignID   int64     `json:"campaign_id"`
	Name         string    `json:"battle_name"`
	Terrain      string    `json:"terrain_description"`
	Status       Status    `json:"status"`
	CurrentRound int       `json:"current_round"`
	TotalRounds  int       `json:"total_rounds"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Populated by Get/Active only.
	Participants []Participant `json:"participants,omitempty"`
	CurrentGoals []Goal        `json:"current_goals,omitempty"`
}

// ArmyStats are the six army attributes. Numbers is the persisted stat; scoring
// derives its own numbers value from the live troop count instead.
type ArmyStats struct {
	Numbers    int `json:"numbers"`
	Equipment  int `json:"equipment"`
	Discipline int `json:"discipline"`
	Morale     int `json:"morale"`
	Command    int `json:"command"`
	Logistics  int `json:"logistics"`
}

type Participant struct {
	ID              int64     `json:"id"`
	BattleID        int64     `json:"battle_id"`
	ArmyID          *int64    `json:"army_id,omitempty"`
	ArmyName        string    `json:"army_name,omitempty"`
	ArmyCategory    string    `json:"army_category,omitempty"`
	IsTemporary     bool      `json:"is_temporary"`
	TempArmyName    string    `json:"temp_army_name,omitempty"`
	TempCategory    string    `json:"temp_army_category,omitempty"`
	Stats           ArmyStats `json:"stats"`
	TeamName        string    `json:"team_name"`
	FactionColor    string    `json:"faction_color"`
	PositionX       float64   `json:"position_x"`
	PositionY       float64   `json:"position_y"`
	CurrentTroops   int       `json:"current_troops"`
	BaseScore       int       `json:"base_score"`
	CurrentScore    int       `json:"current_score"`
	HasSelectedGoal bool      `json:"has_selected_goal"`
}

// Category is the army category used for goal eligibility.
func (p Participant) Category() string {
	if p.IsTemporary {
		return p.TempCategory
	}
	return p.ArmyCategory
}

// DisplayName prefers the temp army name for temporary participants.
func (p Participant) DisplayName() string {
	if p.IsTemporary && p.TempArmyName != "" {
		return p.TempArmyName
	}
	return p.ArmyName
}

// Active participants still have troops and take part in dice rolling.
func (p Participant) Active() bool { return p.CurrentTroops > 0 }

type Goal struct {
	ID                  int64  `json:"id"`
	BattleID            int64  `json:"battle_id"`
	RoundNumber         int    `json:"round_number"`
	ParticipantID       int64  `json:"participant_id"`
	TeamName            string `json:"team_name"`
	GoalKey             string `json:"goal_key,omitempty"`
	GoalName            string `json:"goal_name"`
	TargetParticipantID *int64 `json:"target_participant_id,omitempty"`
	TestType            string `json:"test_type"`
	CharacterModifier   int    `json:"character_modifier"`
	ArmyStatModifier    int    `json:"army_stat_modifier"`
	LockedIn            bool   `json:"locked_in"`
	DiceRoll            *int   `json:"dice_roll,omitempty"`
	DCRequired          *int   `json:"dc_required,omitempty"`
	Success             *bool  `json:"success,omitempty"`
	ModifierApplied     int    `json:"modifier_applied"`
	ExecutorCredited    bool   `json:"executor_credited"`
}

// Resolved goals have had success recorded by the DM.
func (g Goal) Resolved() bool { return g.Success != nil }
