package battle

import "context"

// Store is the persistence collaborator. Implementations return ErrNotFound for
// missing rows and ErrConflict for unique-key violations.
type Store interface {
	CreateBattle(ctx context.Context, b *Battle) error
	GetBattle(ctx context.Context, id int64) (*Battle, error)
	LatestOpenBattle(ctx context.Context, campaignID int64) (*Battle, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (*Battle, error)
	IncrementRound(ctx context.Context, id int64) (*Battle, error)
	ClearGoalSelections(ctx context.Context, battleID int64) error
	DeleteBattle(ctx context.Context, id int64) error

	AddParticipant(ctx context.Context, p *Participant) error
	GetParticipant(ctx context.Context, id int64) (*Participant, error)
	ListParticipants(ctx context.Context, battleID int64) ([]Participant, error)
	SetScores(ctx context.Context, participantID int64, base, current int) error
	AddScore(ctx context.Context, participantID int64, delta int) error
	SetTroops(ctx context.Context, participantID int64, troops int, zeroScore bool) error
	SetPosition(ctx context.Context, participantID int64, x, y float64) error
	MarkGoalSelected(ctx context.Context, participantID int64) error

	FindGoal(ctx context.Context, battleID int64, round int, participantID int64) (*Goal, error)
	CreateGoal(ctx context.Context, g *Goal) error
	UpdateGoalSelection(ctx context.Context, g *Goal) error
	GetGoal(ctx context.Context, id int64) (*Goal, error)
	ListGoals(ctx context.Context, battleID int64, round int) ([]Goal, error)
	ListBattleGoals(ctx context.Context, battleID int64) ([]Goal, error)
	SetGoalLock(ctx context.Context, id int64, locked bool) (*Goal, error)
	SetGoalRoll(ctx context.Context, id int64, roll int) (*Goal, error)
	// SetGoalResolution records the ruling and marks the executor as credited.
	SetGoalResolution(ctx context.Context, id int64, dc int, success bool, modifier int) (*Goal, error)

	// CreateInvitation reports false, without error, when the player already
	// has an invitation to the battle.
	CreateInvitation(ctx context.Context, inv *Invitation) (bool, error)
	ListBattleInvitations(ctx context.Context, battleID int64) ([]Invitation, error)
	ListPendingInvitations(ctx context.Context, playerID, campaignID int64) ([]Invitation, error)
	// RespondInvitation moves a pending invitation to status. Answered
	// invitations yield ErrConflict.
	RespondInvitation(ctx context.Context, id int64, status InvitationStatus) (*Invitation, error)

	AddArmyHistory(ctx context.Context, h *ArmyHistory) error
}
