package lobby

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/DoyleJ11/warband-backend/internal/battle"
	"github.com/DoyleJ11/warband-backend/internal/combat"
	"github.com/DoyleJ11/warband-backend/internal/engine"
	"github.com/DoyleJ11/warband-backend/pkg/types"
)

// Command is a typed client action. The set is closed: only this package
// defines commands.
type Command interface {
	Name() string
	run(ctx context.Context, l *Lobby) (result, error)
}

type result struct {
	broadcast  []types.Frame
	skipSender bool
}

type InviteToCombat struct {
	CharacterID    int64
	TargetPlayerID int64
	IsMonster      bool
}

type AcceptCombatInvite struct {
	CharacterID int64
	PlayerID    int64
}

type AdvanceTurn struct{}

type ResetCombat struct{}

type MoveCharacter struct{ Move types.CharacterBattleMove }

type MoveParticipant struct{ Move types.BattlefieldParticipantMove }

type SubmitGoal struct{ Selection battle.GoalSelection }

type RollGoal struct{ Roll types.RollGoal }

// ResetBattlefieldMovement refills battlefield movement at the start of a
// round. Movement is keyed by participant id.
type ResetBattlefieldMovement struct{ Reset types.BattlefieldMovementReset }

func (InviteToCombat) Name() string     { return types.CmdInviteToCombat }
func (AcceptCombatInvite) Name() string { return types.CmdAcceptCombatInvite }
func (AdvanceTurn) Name() string        { return types.CmdNextTurn }
func (ResetCombat) Name() string        { return types.CmdResetCombat }
func (MoveCharacter) Name() string      { return types.CmdCharacterBattleMove }
func (MoveParticipant) Name() string    { return types.CmdBattlefieldParticipantMove }
func (SubmitGoal) Name() string         { return types.CmdSubmitGoal }
func (RollGoal) Name() string           { return types.CmdRollGoal }
func (ResetBattlefieldMovement) Name() string {
	return types.CmdBattlefieldMovementReset
}

func one(f types.Frame) result { return result{broadcast: []types.Frame{f}} }

func (l *Lobby) combatantsFrame(st engine.State) types.Frame {
	c := st.Combat
	if c == nil {
		c = engine.NewCombat()
	}
	return types.Frame{Event: types.EvtCombatantsUpdated, Payload: types.NewCombatPayload(c, l.deps.Now().UTC())}
}

func (c InviteToCombat) run(ctx context.Context, l *Lobby) (result, error) {
	out, err := l.deps.Combat.Invite(ctx, combat.Invite{
		CampaignID:     l.campaignID,
		CharacterID:    c.CharacterID,
		TargetPlayerID: c.TargetPlayerID,
		IsMonster:      c.IsMonster,
	})
	if err != nil {
		return result{}, err
	}
	if c.IsMonster {
		return one(l.combatantsFrame(out.State)), nil
	}
	return one(types.Frame{Event: types.EvtCombatInvite, Payload: types.CombatInvitePayload{
		CampaignID:     l.campaignID,
		CharacterID:    c.CharacterID,
		TargetPlayerID: c.TargetPlayerID,
		Timestamp:      l.deps.Now().UTC(),
	}}), nil
}

func (c AcceptCombatInvite) run(ctx context.Context, l *Lobby) (result, error) {
	out, err := l.deps.Combat.Accept(ctx, l.campaignID, c.CharacterID, c.PlayerID)
	if err != nil {
		return result{}, err
	}
	return one(l.combatantsFrame(out.State)), nil
}

func (AdvanceTurn) run(ctx context.Context, l *Lobby) (result, error) {
	out, err := l.deps.Combat.NextTurn(ctx, l.campaignID)
	if err != nil {
		return result{}, err
	}
	var ev engine.Event
	for _, e := range out.Events {
		if e.Type == engine.EvtTurnAdvanced {
			ev = e
		}
	}
	return one(types.Frame{Event: types.EvtTurnAdvanced, Payload: types.TurnAdvancedPayload{
		CurrentCharacterID: ev.CombatantID,
		InitiativeOrder:    out.State.Combat.InitiativeOrder,
		CurrentTurnIndex:   out.State.Combat.CurrentTurnIndex,
		ResetMovementFor:   ev.CombatantID,
		MovementSpeed:      ev.MovementSpeed,
		Timestamp:          l.deps.Now().UTC(),
	}}), nil
}

// Reset still announces the cleared session when only the persisted flags
// failed to clear.
func (ResetCombat) run(ctx context.Context, l *Lobby) (result, error) {
	out, err := l.deps.Combat.Reset(ctx, l.campaignID)
	if !engine.ContainsEvent(out.Events, engine.EvtCombatReset) {
		return result{}, err
	}
	return one(types.Frame{Event: types.EvtCombatReset, Payload: types.TimestampPayload{Timestamp: l.deps.Now().UTC()}}), err
}

func (c MoveCharacter) run(ctx context.Context, l *Lobby) (result, error) {
	id := combat.CharacterCombatantID(c.Move.CharacterID)
	if _, err := l.deps.Combat.ReportMovement(ctx, l.campaignID, id, c.Move.RemainingMovement); err != nil {
		return result{}, err
	}
	return result{
		broadcast: []types.Frame{{Event: types.EvtCharacterBattleMoved, Payload: types.CharacterMovedPayload{
			CharacterBattleMove: c.Move,
			Timestamp:           l.deps.Now().UTC(),
		}}},
		skipSender: true,
	}, nil
}

func (c MoveParticipant) run(ctx context.Context, l *Lobby) (result, error) {
	if c.Move.RemainingMovement != nil {
		id := combat.ParticipantCombatantID(c.Move.ParticipantID)
		if _, err := l.deps.Combat.ReportMovement(ctx, l.campaignID, id, *c.Move.RemainingMovement); err != nil {
			return result{}, err
		}
	}
	return result{
		broadcast: []types.Frame{{Event: types.EvtBattlefieldParticipantMoved, Payload: types.ParticipantMovedPayload{
			BattlefieldParticipantMove: c.Move,
			Timestamp:                  l.deps.Now().UTC(),
		}}},
		skipSender: true,
	}, nil
}

func (c ResetBattlefieldMovement) run(ctx context.Context, l *Lobby) (result, error) {
	keys := slices.Sorted(maps.Keys(c.Reset.MovementState))
	ids := make([]string, len(keys))
	for i, key := range keys {
		participantID, err := strconv.ParseInt(key, 10, 64)
		if err != nil || participantID <= 0 {
			return result{}, fmt.Errorf("%w: movement key %q is not a participant id", battle.ErrInvalidArgument, key)
		}
		ids[i] = combat.ParticipantCombatantID(participantID)
	}
	for i, id := range ids {
		if _, err := l.deps.Combat.ReportMovement(ctx, l.campaignID, id, c.Reset.MovementState[keys[i]]); err != nil {
			return result{}, err
		}
	}
	return one(types.Frame{Event: types.EvtBattlefieldMovementReset, Payload: types.MovementResetPayload{
		BattlefieldMovementReset: c.Reset,
		Timestamp:                l.deps.Now().UTC(),
	}}), nil
}

// ownBattle rejects battles of other campaigns, whose clients would never see
// this lobby's broadcast.
func (l *Lobby) ownBattle(ctx context.Context, battleID int64) error {
	campaignID, err := l.deps.Goals.CampaignOf(ctx, battleID)
	if err != nil {
		return err
	}
	if campaignID != l.campaignID {
		return fmt.Errorf("battle %d: %w in campaign %d", battleID, battle.ErrNotFound, l.campaignID)
	}
	return nil
}

func (c SubmitGoal) run(ctx context.Context, l *Lobby) (result, error) {
	if err := l.ownBattle(ctx, c.Selection.BattleID); err != nil {
		return result{}, err
	}
	goal, created, err := l.deps.Goals.SetGoal(ctx, c.Selection)
	if err != nil {
		return result{}, err
	}
	return one(types.Frame{Event: types.EvtBattleGoalSelected, Payload: GoalSelectedPayload{
		BattleID: goal.BattleID,
		Goal:     goal,
		Created:  created,
	}}), nil
}

func (c RollGoal) run(ctx context.Context, l *Lobby) (result, error) {
	g, err := l.deps.Goals.Goal(ctx, c.Roll.GoalID)
	if err != nil {
		return result{}, err
	}
	if err := l.ownBattle(ctx, g.BattleID); err != nil {
		return result{}, err
	}
	if _, err := l.deps.Goals.RecordGoalRoll(ctx, c.Roll.GoalID, c.Roll.DiceRoll); err != nil {
		return result{}, err
	}
	return one(types.Frame{Event: types.EvtBattleGoalRolled, Payload: types.GoalRolledPayload{
		RollGoal:  c.Roll,
		Total:     c.Roll.DiceRoll + c.Roll.TotalModifier,
		Timestamp: l.deps.Now().UTC(),
	}}), nil
}

// GoalSelectedPayload is shared with the HTTP surface so both paths announce
// a selection the same way.
type GoalSelectedPayload struct {
	BattleID int64        `json:"battleId"`
	Goal     *battle.Goal `json:"goal"`
	Created  bool         `json:"created"`
}

func errorFrame(requestID string, err error) types.Frame {
	code := ErrorCode(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	return types.Frame{
		Event:     types.EvtError,
		RequestID: requestID,
		Payload:   types.ErrorPayload{Code: code, Message: msg},
	}
}

// ErrorCode classifies an error for clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, battle.ErrNotFound), errors.Is(err, combat.ErrNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrAlreadyInCombat):
		return "already_in_combat"
	case errors.Is(err, engine.ErrNoCombat):
		return "no_combat"
	case errors.Is(err, battle.ErrConflict), errors.Is(err, battle.ErrIllegalTransition):
		return "conflict"
	case errors.Is(err, battle.ErrInvalidArgument),
		errors.Is(err, battle.ErrGoalNotEligible),
		errors.Is(err, engine.ErrUnknownCombatant):
		return "invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
