package battle

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/warband-backend/internal/dice"
	"github.com/DoyleJ11/warband-backend/internal/goals"
)

// Service runs the battle lifecycle. Multi-statement operations (AdvanceRound,
// ApplyModifiers) issue independent statements; a failure between them is
// surfaced to the caller and not rolled back.
type Service struct {
	store  Store
	roller dice.Roller
	logger *zap.Logger
}

func NewService(store Store, roller dice.Roller, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, roller: roller, logger: logger.Named("battle")}
}

type CreateParams struct {
	CampaignID  int64
	Name        string
	Terrain     string
	TotalRounds int
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Battle, error) {
	if p.CampaignID == 0 || strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("%w: campaign_id and battle_name are required", ErrInvalidArgument)
	}
	if p.TotalRounds < 0 {
		return nil, fmt.Errorf("%w: total_rounds must not be negative", ErrInvalidArgument)
	}
	b := &Battle{
		CampaignID:   p.CampaignID,
		Name:         p.Name,
		Terrain:      p.Terrain,
		Status:       StatusPlanning,
		CurrentRound: 0,
		TotalRounds:  p.TotalRounds,
	}
	if err := s.store.CreateBattle(ctx, b); err != nil {
		return nil, fmt.Errorf("create battle: %w", err)
	}
	s.logger.Info("battle created",
		zap.Int64("battle_id", b.ID),
		zap.Int64("campaign_id", b.CampaignID),
		zap.Int("total_rounds", b.TotalRounds))
	return b, nil
}

// Get loads a battle with its participants and the current round's goals.
func (s *Service) Get(ctx context.Context, id int64) (*Battle, error) {
	b, err := s.store.GetBattle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get battle %d: %w", id, err)
	}
	return s.hydrate(ctx, b)
}

// Active returns the newest battle of a campaign that is neither completed nor cancelled.
func (s *Service) Active(ctx context.Context, campaignID int64) (*Battle, error) {
	b, err := s.store.LatestOpenBattle(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("active battle for campaign %d: %w", campaignID, err)
	}
	return s.hydrate(ctx, b)
}

func (s *Service) hydrate(ctx context.Context, b *Battle) (*Battle, error) {
	ps, err := s.store.ListParticipants(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	gs, err := s.store.ListGoals(ctx, b.ID, b.CurrentRound)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	b.Participants = ps
	b.CurrentGoals = gs
	return b, nil
}

// Transition applies a lifecycle event through the transition table.
func (s *Service) Transition(ctx context.Context, id int64, ev Event) (*Battle, error) {
	b, err := s.store.GetBattle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get battle %d: %w", id, err)
	}
	to, err := Next(b.Status, ev)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateStatus(ctx, id, to)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.logger.Info("battle status changed",
		zap.Int64("battle_id", id),
		zap.String("from", string(b.Status)),
		zap.String("to", string(to)),
		zap.String("event", string(ev)))
	return updated, nil
}

// SetStatus moves a battle to target if some event in the table leads there.
func (s *Service) SetStatus(ctx context.Context, id int64, target Status) (*Battle, error) {
	b, err := s.store.GetBattle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get battle %d: %w", id, err)
	}
	ev, err := EventFor(b.Status, target)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, id, ev)
}

// AdvanceRound bumps current_round by one and clears every participant's
// goal-selected flag.
func (s *Service) AdvanceRound(ctx context.Context, id int64) (*Battle, error) {
	b, err := s.store.GetBattle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get battle %d: %w", id, err)
	}
	if b.TotalRounds > 0 && b.CurrentRound >= b.TotalRounds {
		return nil, fmt.Errorf("%w: round %d of %d", ErrRoundLimit, b.CurrentRound, b.TotalRounds)
	}
	updated, err := s.store.IncrementRound(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("increment round: %w", err)
	}
	if err := s.store.ClearGoalSelections(ctx, id); err != nil {
		s.logger.Error("round advanced but goal selections not cleared",
			zap.Int64("battle_id", id), zap.Int("round", updated.CurrentRound), zap.Error(err))
		return nil, fmt.Errorf("clear goal selections: %w", err)
	}
	s.logger.Info("battle round advanced", zap.Int64("battle_id", id), zap.Int("round", updated.CurrentRound))
	return updated, nil
}

type AddParticipantParams struct {
	BattleID      int64
	ArmyID        *int64
	TeamName      string
	FactionColor  string
	IsTemporary   bool
	TempArmyName  string
	TempCategory  string
	TempStats     *ArmyStats
	PositionX     *float64
	PositionY     *float64
	CurrentTroops *int
}

func (s *Service) AddParticipant(ctx context.Context, p AddParticipantParams) (*Participant, error) {
	if strings.TrimSpace(p.TeamName) == "" {
		return nil, fmt.Errorf("%w: team_name is required", ErrInvalidArgument)
	}
	if !p.IsTemporary && p.ArmyID == nil {
		return nil, fmt.Errorf("%w: army_id is required for non-temporary participants", ErrInvalidArgument)
	}
	if _, err := s.store.GetBattle(ctx, p.BattleID); err != nil {
		return nil, fmt.Errorf("get battle %d: %w", p.BattleID, err)
	}

	part := &Participant{
		BattleID:      p.BattleID,
		ArmyID:        p.ArmyID,
		TeamName:      p.TeamName,
		FactionColor:  cmp.Or(p.FactionColor, DefaultFactionColor),
		IsTemporary:   p.IsTemporary,
		TempArmyName:  p.TempArmyName,
		PositionX:     DefaultPosition,
		PositionY:     DefaultPosition,
		CurrentTroops: DefaultTroops,
	}
	if p.IsTemporary {
		part.ArmyID = nil
		part.TempCategory = cmp.Or(p.TempCategory, DefaultTempCategory)
		if p.TempStats != nil {
			part.Stats = *p.TempStats
		}
	}
	if p.PositionX != nil {
		part.PositionX = *p.PositionX
	}
	if p.PositionY != nil {
		part.PositionY = *p.PositionY
	}
	if p.CurrentTroops != nil {
		if *p.CurrentTroops < 0 {
			return nil, fmt.Errorf("%w: current_troops must not be negative", ErrInvalidArgument)
		}
		part.CurrentTroops = *p.CurrentTroops
	}

	if err := s.store.AddParticipant(ctx, part); err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	return part, nil
}

func (s *Service) UpdatePosition(ctx context.Context, participantID int64, x, y float64) error {
	if err := s.store.SetPosition(ctx, participantID, x, y); err != nil {
		return fmt.Errorf("set position of participant %d: %w", participantID, err)
	}
	return nil
}

// ScoreResult reports one participant's outcome of a scoring pass.
type ScoreResult struct {
	ParticipantID int64 `json:"participant_id"`
	DiceRoll      int   `json:"dice_roll"`
	BaseScore     int   `json:"base_score"`
	CurrentScore  int   `json:"current_score"`
	Eliminated    bool  `json:"eliminated"`
}

// CalculateBaseScores rolls 1d10 for every participant with troops. On the first
// scoring (current_round <= 1) scores are rebuilt from stats; afterwards the roll
// is added to the running score. Participants without troops are not rolled and
// have their current score forced to zero.
func (s *Service) CalculateBaseScores(ctx context.Context, battleID int64) ([]ScoreResult, error) {
	b, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("get battle %d: %w", battleID, err)
	}
	ps, err := s.store.ListParticipants(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	first := b.CurrentRound <= 1
	results := make([]ScoreResult, 0, len(ps))
	for _, p := range ps {
		var roll int
		u := scoreFor(p, first, func() int {
			roll = dice.D10(s.roller)
			return roll
		})
		if err := s.store.SetScores(ctx, p.ID, u.base, u.current); err != nil {
			return nil, fmt.Errorf("set scores of participant %d: %w", p.ID, err)
		}
		results = append(results, ScoreResult{
			ParticipantID: p.ID,
			DiceRoll:      roll,
			BaseScore:     u.base,
			CurrentScore:  u.current,
			Eliminated:    !u.rolled,
		})
	}
	s.logger.Info("battle scores calculated",
		zap.Int64("battle_id", battleID),
		zap.Int("round", b.CurrentRound),
		zap.Bool("first_scoring", first),
		zap.Int("participants", len(results)))
	return results, nil
}

type GoalSelection struct {
	BattleID            int64
	RoundNumber         int
	ParticipantID       int64
	GoalKey             string
	GoalName            string
	TargetParticipantID *int64
	TestType            string
	CharacterModifier   int
	ArmyStatModifier    int
}

// SetGoal upserts the goal of one participant for one round. Goals are
// participant scoped: a team with several armies submits one goal per army,
// and only the acting participant is flagged as having selected.
func (s *Service) SetGoal(ctx context.Context, sel GoalSelection) (*Goal, bool, error) {
	if sel.RoundNumber < 0 {
		return nil, false, fmt.Errorf("%w: round_number must not be negative", ErrInvalidArgument)
	}
	p, err := s.store.GetParticipant(ctx, sel.ParticipantID)
	if err != nil {
		return nil, false, fmt.Errorf("participant %d: %w", sel.ParticipantID, err)
	}
	if p.BattleID != sel.BattleID {
		return nil, false, fmt.Errorf("participant %d: %w in battle %d", sel.ParticipantID, ErrNotFound, sel.BattleID)
	}

	name := sel.GoalName
	if sel.GoalKey != "" {
		def, ok := goals.FindByKey(sel.GoalKey)
		if !ok {
			return nil, false, fmt.Errorf("%w: unknown goal key %q", ErrInvalidArgument, sel.GoalKey)
		}
		if !goals.IsEligible(def, p.Category()) {
			return nil, false, fmt.Errorf("%w: %s for %q", ErrGoalNotEligible, def.Key, p.Category())
		}
		name = cmp.Or(name, def.Name)
	}
	if strings.TrimSpace(name) == "" {
		return nil, false, fmt.Errorf("%w: goal_key or goal_name is required", ErrInvalidArgument)
	}

	if sel.TargetParticipantID != nil {
		if *sel.TargetParticipantID == p.ID {
			return nil, false, fmt.Errorf("%w: a participant cannot target itself", ErrInvalidArgument)
		}
		target, err := s.store.GetParticipant(ctx, *sel.TargetParticipantID)
		if err != nil {
			return nil, false, fmt.Errorf("target participant %d: %w", *sel.TargetParticipantID, err)
		}
		if target.BattleID != sel.BattleID {
			return nil, false, fmt.Errorf("target participant %d: %w in battle %d", target.ID, ErrNotFound, sel.BattleID)
		}
	}

	g := &Goal{
		BattleID:            sel.BattleID,
		RoundNumber:         sel.RoundNumber,
		ParticipantID:       p.ID,
		TeamName:            p.TeamName,
		GoalKey:             sel.GoalKey,
		GoalName:            name,
		TargetParticipantID: sel.TargetParticipantID,
		TestType:            sel.TestType,
		CharacterModifier:   sel.CharacterModifier,
		ArmyStatModifier:    sel.ArmyStatModifier,
	}

	existing, err := s.store.FindGoal(ctx, sel.BattleID, sel.RoundNumber, p.ID)
	switch {
	case err == nil:
		g.ID = existing.ID
		g.LockedIn = existing.LockedIn
		g.DiceRoll = existing.DiceRoll
		g.DCRequired = existing.DCRequired
		g.Success = existing.Success
		g.ModifierApplied = existing.ModifierApplied
		if err := s.store.UpdateGoalSelection(ctx, g); err != nil {
			return nil, false, fmt.Errorf("update goal %d: %w", g.ID, err)
		}
		return g, false, nil
	case errors.Is(err, ErrNotFound):
	default:
		return nil, false, fmt.Errorf("find goal: %w", err)
	}

	if err := s.store.CreateGoal(ctx, g); err != nil {
		return nil, false, fmt.Errorf("create goal: %w", err)
	}
	if err := s.store.MarkGoalSelected(ctx, p.ID); err != nil {
		return nil, false, fmt.Errorf("mark participant %d selected: %w", p.ID, err)
	}
	s.logger.Info("battle goal selected",
		zap.Int64("battle_id", sel.BattleID),
		zap.Int("round", sel.RoundNumber),
		zap.Int64("participant_id", p.ID),
		zap.String("goal", name))
	return g, true, nil
}

// Goal loads a single goal.
func (s *Service) Goal(ctx context.Context, goalID int64) (*Goal, error) {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal %d: %w", goalID, err)
	}
	return g, nil
}

// CampaignOf returns the campaign a battle belongs to.
func (s *Service) CampaignOf(ctx context.Context, battleID int64) (int64, error) {
	b, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return 0, fmt.Errorf("get battle %d: %w", battleID, err)
	}
	return b.CampaignID, nil
}

func (s *Service) LockGoal(ctx context.Context, goalID int64, locked bool) (*Goal, error) {
	g, err := s.store.SetGoalLock(ctx, goalID, locked)
	if err != nil {
		return nil, fmt.Errorf("lock goal %d: %w", goalID, err)
	}
	return g, nil
}

func (s *Service) RecordGoalRoll(ctx context.Context, goalID int64, roll int) (*Goal, error) {
	if roll < 1 {
		return nil, fmt.Errorf("%w: dice_roll must be positive", ErrInvalidArgument)
	}
	g, err := s.store.SetGoalRoll(ctx, goalID, roll)
	if err != nil {
		return nil, fmt.Errorf("record roll for goal %d: %w", goalID, err)
	}
	return g, nil
}

// ResolveGoal records the DM's ruling and credits modifier to the executor
// right away, marking the goal as credited. The target's penalty is left to
// ApplyModifiers.
func (s *Service) ResolveGoal(ctx context.Context, goalID int64, dc int, success bool, modifier int) (*Goal, error) {
	g, err := s.store.SetGoalResolution(ctx, goalID, dc, success, modifier)
	if err != nil {
		return nil, fmt.Errorf("resolve goal %d: %w", goalID, err)
	}
	if modifier != 0 {
		if err := s.store.AddScore(ctx, g.ParticipantID, modifier); err != nil {
			return nil, fmt.Errorf("apply modifier to participant %d: %w", g.ParticipantID, err)
		}
	}
	s.logger.Info("battle goal resolved",
		zap.Int64("goal_id", goalID),
		zap.Int("dc", dc),
		zap.Bool("success", success),
		zap.Int("modifier", modifier))
	return g, nil
}

// ApplyModifiers settles every resolved goal of the round by debiting the
// target. ResolveGoal credits the executor and marks the goal credited, so the
// executor branch here only runs for rows resolved without that credit, such
// as rows written before the flag existed. It is not idempotent: target debits
// repeat on every call, so callers invoke it once per round.
func (s *Service) ApplyModifiers(ctx context.Context, battleID int64, round int) ([]Goal, error) {
	gs, err := s.store.ListGoals(ctx, battleID, round)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	applied := make([]Goal, 0, len(gs))
	for _, g := range gs {
		if !g.Resolved() {
			continue
		}
		if !g.ExecutorCredited {
			if err := s.store.AddScore(ctx, g.ParticipantID, g.ModifierApplied); err != nil {
				return applied, fmt.Errorf("credit participant %d: %w", g.ParticipantID, err)
			}
		}
		if g.TargetParticipantID != nil && g.ModifierApplied != 0 {
			if err := s.store.AddScore(ctx, *g.TargetParticipantID, -g.ModifierApplied); err != nil {
				return applied, fmt.Errorf("debit participant %d: %w", *g.TargetParticipantID, err)
			}
		}
		applied = append(applied, g)
	}
	s.logger.Info("battle modifiers applied",
		zap.Int64("battle_id", battleID), zap.Int("round", round), zap.Int("goals", len(applied)))
	return applied, nil
}

// ApplyTroopCasualties removes casualties from a participant, never below zero.
// A participant left without troops is eliminated and scores zero.
func (s *Service) ApplyTroopCasualties(ctx context.Context, participantID int64, casualties int) (*Participant, error) {
	if casualties < 0 {
		return nil, fmt.Errorf("%w: casualties must not be negative", ErrInvalidArgument)
	}
	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("participant %d: %w", participantID, err)
	}
	p.CurrentTroops = max(0, p.CurrentTroops-casualties)
	eliminated := p.CurrentTroops == 0
	if eliminated {
		p.CurrentScore = 0
	}
	if err := s.store.SetTroops(ctx, participantID, p.CurrentTroops, eliminated); err != nil {
		return nil, fmt.Errorf("set troops of participant %d: %w", participantID, err)
	}
	if eliminated {
		s.logger.Info("participant eliminated", zap.Int64("participant_id", participantID))
	}
	return p, nil
}

// Complete records a history row for every persistent army, then closes the
// battle. It returns participants ordered by final score. A failed history
// write leaves the battle open so the DM can retry.
func (s *Service) Complete(ctx context.Context, battleID int64) (*Battle, []Participant, error) {
	b, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return nil, nil, fmt.Errorf("get battle %d: %w", battleID, err)
	}
	if _, err := Next(b.Status, EventComplete); err != nil {
		return nil, nil, err
	}
	ps, err := s.store.ListParticipants(ctx, battleID)
	if err != nil {
		return nil, nil, fmt.Errorf("list participants: %w", err)
	}
	slices.SortStableFunc(ps, func(a, b Participant) int {
		return cmp.Compare(b.CurrentScore, a.CurrentScore)
	})
	gs, err := s.store.ListBattleGoals(ctx, battleID)
	if err != nil {
		return nil, nil, fmt.Errorf("list goals: %w", err)
	}

	history := buildHistory(b, ps, gs)
	for i := range history {
		if err := s.store.AddArmyHistory(ctx, &history[i]); err != nil {
			return nil, nil, fmt.Errorf("record history of army %d: %w", history[i].ArmyID, err)
		}
	}

	done, err := s.Transition(ctx, battleID, EventComplete)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("battle completed",
		zap.Int64("battle_id", battleID),
		zap.Int("participants", len(ps)),
		zap.Int("history_rows", len(history)))
	return done, ps, nil
}

func (s *Service) Delete(ctx context.Context, battleID int64) error {
	if err := s.store.DeleteBattle(ctx, battleID); err != nil {
		return fmt.Errorf("delete battle %d: %w", battleID, err)
	}
	s.logger.Info("battle deleted", zap.Int64("battle_id", battleID))
	return nil
}
