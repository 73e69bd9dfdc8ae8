package battle

import (
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Invitation asks a player to bring their own armies into a battle on a given
// team. A player holds at most one invitation per battle.
type Invitation struct {
	ID           int64            `json:"id"`
	BattleID     int64            `json:"battle_id"`
	PlayerID     int64            `json:"player_id"`
	TeamName     string           `json:"team_name"`
	FactionColor string           `json:"faction_color"`
	Status       InvitationStatus `json:"status"`
	InvitedAt    time.Time        `json:"invited_at"`
	RespondedAt  *time.Time       `json:"responded_at,omitempty"`

	// Populated by PlayerInvitations only.
	BattleName   string `json:"battle_name,omitempty"`
	Terrain      string `json:"terrain_description,omitempty"`
	BattleStatus Status `json:"battle_status,omitempty"`
	CurrentRound int    `json:"current_round,omitempty"`
}

type InviteParams struct {
	BattleID     int64
	PlayerIDs    []int64
	TeamName     string
	FactionColor string
}

// Invite creates a pending invitation per player. Players already invited to
// the battle are skipped, so the result may be shorter than PlayerIDs.
func (s *Service) Invite(ctx context.Context, p InviteParams) (*Battle, []Invitation, error) {
	if len(p.PlayerIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: player_ids must not be empty", ErrInvalidArgument)
	}
	if strings.TrimSpace(p.TeamName) == "" {
		return nil, nil, fmt.Errorf("%w: team_name is required", ErrInvalidArgument)
	}
	b, err := s.store.GetBattle(ctx, p.BattleID)
	if err != nil {
		return nil, nil, fmt.Errorf("get battle %d: %w", p.BattleID, err)
	}

	out := make([]Invitation, 0, len(p.PlayerIDs))
	for _, playerID := range p.PlayerIDs {
		inv := &Invitation{
			BattleID:     p.BattleID,
			PlayerID:     playerID,
			TeamName:     p.TeamName,
			FactionColor: cmp.Or(p.FactionColor, DefaultFactionColor),
			Status:       InvitationPending,
		}
		created, err := s.store.CreateInvitation(ctx, inv)
		if err != nil {
			return nil, nil, fmt.Errorf("invite player %d: %w", playerID, err)
		}
		if created {
			out = append(out, *inv)
		}
	}
	s.logger.Info("battle invitations sent",
		zap.Int64("battle_id", p.BattleID),
		zap.String("team", p.TeamName),
		zap.Int("invited", len(out)),
		zap.Int("requested", len(p.PlayerIDs)))
	return b, out, nil
}

// BattleInvitations lists every invitation of a battle, newest first.
func (s *Service) BattleInvitations(ctx context.Context, battleID int64) ([]Invitation, error) {
	if _, err := s.store.GetBattle(ctx, battleID); err != nil {
		return nil, fmt.Errorf("get battle %d: %w", battleID, err)
	}
	invs, err := s.store.ListBattleInvitations(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("list invitations of battle %d: %w", battleID, err)
	}
	return invs, nil
}

// PlayerInvitations lists the player's pending invitations within a campaign.
func (s *Service) PlayerInvitations(ctx context.Context, playerID, campaignID int64) ([]Invitation, error) {
	invs, err := s.store.ListPendingInvitations(ctx, playerID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list invitations of player %d: %w", playerID, err)
	}
	return invs, nil
}

// Acceptance is the outcome of an accepted invitation.
type Acceptance struct {
	Invitation   Invitation    `json:"invitation"`
	Participants []Participant `json:"participants"`
	CampaignID   int64         `json:"-"`
}

// AcceptInvitation marks a pending invitation accepted and adds one
// participant per army, on the invitation's team and colour.
func (s *Service) AcceptInvitation(ctx context.Context, invitationID int64, armyIDs []int64) (*Acceptance, error) {
	if len(armyIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one army must be selected", ErrInvalidArgument)
	}
	inv, err := s.store.RespondInvitation(ctx, invitationID, InvitationAccepted)
	if err != nil {
		return nil, fmt.Errorf("accept invitation %d: %w", invitationID, err)
	}
	b, err := s.store.GetBattle(ctx, inv.BattleID)
	if err != nil {
		return nil, fmt.Errorf("get battle %d: %w", inv.BattleID, err)
	}

	acc := &Acceptance{Invitation: *inv, CampaignID: b.CampaignID, Participants: make([]Participant, 0, len(armyIDs))}
	for _, armyID := range armyIDs {
		p, err := s.AddParticipant(ctx, AddParticipantParams{
			BattleID:     inv.BattleID,
			ArmyID:       &armyID,
			TeamName:     inv.TeamName,
			FactionColor: inv.FactionColor,
		})
		if err != nil {
			return nil, err
		}
		acc.Participants = append(acc.Participants, *p)
	}
	s.logger.Info("battle invitation accepted",
		zap.Int64("invitation_id", invitationID),
		zap.Int64("battle_id", inv.BattleID),
		zap.Int64("player_id", inv.PlayerID),
		zap.Int("armies", len(armyIDs)))
	return acc, nil
}

// DeclineInvitation marks a pending invitation declined. It returns the
// battle so callers can address the campaign.
func (s *Service) DeclineInvitation(ctx context.Context, invitationID int64) (*Invitation, *Battle, error) {
	inv, err := s.store.RespondInvitation(ctx, invitationID, InvitationDeclined)
	if err != nil {
		return nil, nil, fmt.Errorf("decline invitation %d: %w", invitationID, err)
	}
	b, err := s.store.GetBattle(ctx, inv.BattleID)
	if err != nil {
		return nil, nil, fmt.Errorf("get battle %d: %w", inv.BattleID, err)
	}
	s.logger.Info("battle invitation declined",
		zap.Int64("invitation_id", invitationID),
		zap.Int64("player_id", inv.PlayerID))
	return inv, b, nil
}
