package combat

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/warband-backend/internal/dice"
	"github.com/DoyleJ11/warband-backend/internal/engine"
	"github.com/DoyleJ11/warband-backend/internal/session"
)

// Outcome is what a command did: the reducer events and the state after them.
type Outcome struct {
	Events []engine.Event
	State  engine.State
}

type Coordinator struct {
	sessions   session.Store
	characters Characters
	monsters   Monsters
	roller     dice.Roller
	logger     *zap.Logger
}

func NewCoordinator(sessions session.Store, characters Characters, monsters Monsters, roller dice.Roller, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		sessions:   sessions,
		characters: characters,
		monsters:   monsters,
		roller:     roller,
		logger:     logger.Named("combat"),
	}
}

func CharacterCombatantID(characterID int64) string {
	return strconv.FormatInt(characterID, 10)
}

func BeastCombatantID(ownerID int64) string {
	return fmt.Sprintf("beast-%d", ownerID)
}

func MonsterCombatantID(instanceID int64) string {
	return fmt.Sprintf("monster-%d", instanceID)
}

func ParticipantCombatantID(participantID int64) string {
	return fmt.Sprintf("participant-%d", participantID)
}

func (c *Coordinator) apply(ctx context.Context, campaignID int64, cmd engine.Command) (Outcome, error) {
	var events []engine.Event
	st, err := c.sessions.Mutate(ctx, campaignID, func(s engine.State) (engine.State, error) {
		evs, next, err := engine.Apply(s, cmd)
		if err != nil {
			return s, err
		}
		events = evs
		return next, nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Events: events, State: st}, nil
}

type Invite struct {
	CampaignID     int64
	CharacterID    int64
	TargetPlayerID int64
	IsMonster      bool
}

// Invite spawns monsters straight into combat. A player invite changes
// nothing until the player accepts, so it yields an empty Outcome.
func (c *Coordinator) Invite(ctx context.Context, inv Invite) (Outcome, error) {
	if !inv.IsMonster {
		return Outcome{}, nil
	}
	return c.SpawnMonster(ctx, inv.CampaignID, inv.CharacterID, inv.TargetPlayerID)
}

// SpawnMonster puts a new instance of the monster template into the campaign's
// combat. Monsters roll a plain d20 for initiative.
func (c *Coordinator) SpawnMonster(ctx context.Context, campaignID, monsterID, controllerID int64) (Outcome, error) {
	log := c.logger.With(zap.Int64("campaign_id", campaignID), zap.Int64("monster_id", monsterID))

	m, err := c.monsters.GetMonster(ctx, monsterID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load monster %d: %w", monsterID, err)
	}
	initiative := dice.D20(c.roller)

	inst, err := c.monsters.SpawnInstance(ctx, m, campaignID, initiative)
	if err != nil {
		return Outcome{}, fmt.Errorf("spawn monster %d: %w", monsterID, err)
	}

	out, err := c.apply(ctx, campaignID, engine.Command{
		Type: engine.CmdAddCombatants,
		Combatants: []engine.Combatant{{
			ID:             MonsterCombatantID(inst.ID),
			PlayerID:       controllerID,
			Name:           fmt.Sprintf("%s #%d", m.Name, inst.InstanceNumber),
			Initiative:     initiative,
			MovementSpeed:  engine.DefaultMovementSpeed,
			IsMonster:      true,
			MonsterID:      m.ID,
			InstanceID:     inst.ID,
			InstanceNumber: inst.InstanceNumber,
		}},
	})
	if err != nil {
		return Outcome{}, err
	}
	log.Info("monster joined combat",
		zap.Int64("instance_id", inst.ID),
		zap.Int("instance_number", inst.InstanceNumber),
		zap.Int("initiative", initiative))
	return out, nil
}

// Accept adds a character, and a qualifying beast companion, to combat.
func (c *Coordinator) Accept(ctx context.Context, campaignID, characterID, playerID int64) (Outcome, error) {
	log := c.logger.With(zap.Int64("campaign_id", campaignID), zap.Int64("character_id", characterID))

	ch, err := c.characters.GetCharacter(ctx, characterID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load character %d: %w", characterID, err)
	}
	initiative := dice.D20(c.roller) + AbilityModifier(ch.Dexterity)

	joining := []engine.Combatant{{
		ID:            CharacterCombatantID(ch.ID),
		PlayerID:      playerID,
		Name:          ch.Name,
		Initiative:    initiative,
		MovementSpeed: ch.MovementSpeed,
	}}
	if companion, ok := c.companion(ctx, ch, playerID, initiative); ok {
		joining = append(joining, companion)
	}

	out, err := c.apply(ctx, campaignID, engine.Command{Type: engine.CmdAddCombatants, Combatants: joining})
	if err != nil {
		return Outcome{}, err
	}

	// The combatant is already in the session; a stale flag is only cosmetic.
	if err := c.characters.SetCombatActive(ctx, ch.ID, true); err != nil {
		log.Warn("failed to flag character in combat", zap.Error(err))
	}
	log.Info("character joined combat", zap.Int("initiative", initiative), zap.Int("joined", len(joining)))
	return out, nil
}

func (c *Coordinator) companion(ctx context.Context, ch *Character, playerID int64, initiative int) (engine.Combatant, bool) {
	if ch.Class != PrimalBondClass {
		return engine.Combatant{}, false
	}
	beast, err := c.characters.GetBeast(ctx, ch.ID)
	if errors.Is(err, ErrNotFound) {
		return engine.Combatant{}, false
	}
	if err != nil {
		c.logger.Warn("failed to load beast companion", zap.Int64("character_id", ch.ID), zap.Error(err))
		return engine.Combatant{}, false
	}
	if !CompanionFights(beast.Type, ch.Level) {
		return engine.Combatant{}, false
	}

	name := beast.Name
	if name == "" {
		name = beast.Type
	}
	return engine.Combatant{
		ID:            BeastCombatantID(ch.ID),
		PlayerID:      playerID,
		Name:          name + " (Companion)",
		Initiative:    initiative,
		MovementSpeed: beast.Speed,
		IsBeast:       true,
		OwnerID:       ch.ID,
	}, true
}

func (c *Coordinator) NextTurn(ctx context.Context, campaignID int64) (Outcome, error) {
	out, err := c.apply(ctx, campaignID, engine.Command{Type: engine.CmdNextTurn})
	if err != nil {
		if errors.Is(err, engine.ErrNoCombat) {
			c.logger.Info("next turn without combat", zap.Int64("campaign_id", campaignID))
		}
		return Outcome{}, err
	}
	return out, nil
}

// ReportMovement records the client's remaining movement for a combatant as is.
func (c *Coordinator) ReportMovement(ctx context.Context, campaignID int64, combatantID string, remaining int) (Outcome, error) {
	return c.apply(ctx, campaignID, engine.Command{
		Type:        engine.CmdReportMovement,
		CombatantID: combatantID,
		Remaining:   remaining,
	})
}

// Reset ends the campaign's combat. The session is gone even when clearing the
// persisted flags fails; those failures are returned together.
func (c *Coordinator) Reset(ctx context.Context, campaignID int64) (Outcome, error) {
	st, _, err := c.sessions.Get(ctx, campaignID)
	if err != nil {
		return Outcome{}, err
	}
	events, next, err := engine.Apply(st, engine.Command{Type: engine.CmdReset})
	if err != nil {
		return Outcome{}, err
	}
	if err := c.sessions.Delete(ctx, campaignID); err != nil {
		return Outcome{}, err
	}

	var errs []error
	if st.Combat != nil {
		for _, cb := range st.Combat.Combatants {
			if !cb.IsCharacter() {
				continue
			}
			id, err := strconv.ParseInt(cb.ID, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("combatant %q: %w", cb.ID, err))
				continue
			}
			if err := c.characters.SetCombatActive(ctx, id, false); err != nil {
				errs = append(errs, fmt.Errorf("clear combat flag for %d: %w", id, err))
			}
		}
	}
	if err := c.monsters.RemoveAllFromCombat(ctx, campaignID); err != nil {
		errs = append(errs, fmt.Errorf("remove monsters from combat: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		c.logger.Warn("combat reset incomplete", zap.Int64("campaign_id", campaignID), zap.Error(err))
		return Outcome{Events: events, State: next}, err
	}
	c.logger.Info("combat reset", zap.Int64("campaign_id", campaignID))
	return Outcome{Events: events, State: next}, nil
}

// Snapshot is the state a late joiner needs to catch up.
func (c *Coordinator) Snapshot(ctx context.Context, campaignID int64) (engine.State, error) {
	return c.sessions.Snapshot(ctx, campaignID)
}
