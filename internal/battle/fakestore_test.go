package battle

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
)

// fakeStore is an in-memory Store. failOn makes the named method return errIO.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	battles      map[int64]*Battle
	participants map[int64]*Participant
	goals        map[int64]*Goal
	invitations  map[int64]*Invitation
	history      []ArmyHistory
	failOn       map[string]bool
}

var errIO = errors.New("connection reset")

func newFakeStore() *fakeStore {
	return &fakeStore{
		battles:      map[int64]*Battle{},
		participants: map[int64]*Participant{},
		goals:        map[int64]*Goal{},
		invitations:  map[int64]*Invitation{},
		failOn:       map[string]bool{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) fail(name string) error {
	if f.failOn[name] {
		return errIO
	}
	return nil
}

func (f *fakeStore) CreateBattle(_ context.Context, b *Battle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateBattle"); err != nil {
		return err
	}
	b.ID = f.id()
	cp := *b
	f.battles[b.ID] = &cp
	return nil
}

func (f *fakeStore) GetBattle(_ context.Context, id int64) (*Battle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.battles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) LatestOpenBattle(_ context.Context, campaignID int64) (*Battle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *Battle
	for _, b := range f.battles {
		if b.CampaignID != campaignID || b.Status.Terminal() {
			continue
		}
		if latest == nil || b.ID > latest.ID {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id int64, status Status) (*Battle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.battles[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.Status = status
	cp := *b
	return &cp, nil
}

func (f *fakeStore) IncrementRound(_ context.Context, id int64) (*Battle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("IncrementRound"); err != nil {
		return nil, err
	}
	b, ok := f.battles[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.CurrentRound++
	cp := *b
	return &cp, nil
}

func (f *fakeStore) ClearGoalSelections(_ context.Context, battleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ClearGoalSelections"); err != nil {
		return err
	}
	for _, p := range f.participants {
		if p.BattleID == battleID {
			p.HasSelectedGoal = false
		}
	}
	return nil
}

func (f *fakeStore) DeleteBattle(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.battles[id]; !ok {
		return ErrNotFound
	}
	delete(f.battles, id)
	for pid, p := range f.participants {
		if p.BattleID == id {
			delete(f.participants, pid)
		}
	}
	for gid, g := range f.goals {
		if g.BattleID == id {
			delete(f.goals, gid)
		}
	}
	return nil
}

func (f *fakeStore) AddParticipant(_ context.Context, p *Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddParticipant"); err != nil {
		return err
	}
	p.ID = f.id()
	cp := *p
	f.participants[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetParticipant(_ context.Context, id int64) (*Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListParticipants(_ context.Context, battleID int64) ([]Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Participant
	for _, p := range f.participants {
		if p.BattleID == battleID {
			out = append(out, *p)
		}
	}
	slices.SortFunc(out, func(a, b Participant) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeStore) SetScores(_ context.Context, id int64, base, current int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.BaseScore, p.CurrentScore = base, current
	return nil
}

func (f *fakeStore) AddScore(_ context.Context, id int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddScore"); err != nil {
		return err
	}
	p, ok := f.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.CurrentScore += delta
	return nil
}

func (f *fakeStore) SetTroops(_ context.Context, id int64, troops int, zeroScore bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.CurrentTroops = troops
	if zeroScore {
		p.CurrentScore = 0
	}
	return nil
}

func (f *fakeStore) SetPosition(_ context.Context, id int64, x, y float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.PositionX, p.PositionY = x, y
	return nil
}

func (f *fakeStore) MarkGoalSelected(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.participants[id]
	if !ok {
		return ErrNotFound
	}
	p.HasSelectedGoal = true
	return nil
}

func (f *fakeStore) FindGoal(_ context.Context, battleID int64, round int, participantID int64) (*Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.goals {
		if g.BattleID == battleID && g.RoundNumber == round && g.ParticipantID == participantID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) CreateGoal(_ context.Context, g *Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.goals {
		if existing.BattleID == g.BattleID && existing.RoundNumber == g.RoundNumber && existing.ParticipantID == g.ParticipantID {
			return ErrConflict
		}
	}
	g.ID = f.id()
	cp := *g
	f.goals[g.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateGoalSelection(_ context.Context, g *Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.goals[g.ID]
	if !ok {
		return ErrNotFound
	}
	existing.GoalKey = g.GoalKey
	existing.GoalName = g.GoalName
	existing.TargetParticipantID = g.TargetParticipantID
	existing.TestType = g.TestType
	existing.CharacterModifier = g.CharacterModifier
	existing.ArmyStatModifier = g.ArmyStatModifier
	return nil
}

func (f *fakeStore) GetGoal(_ context.Context, id int64) (*Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) ListGoals(_ context.Context, battleID int64, round int) ([]Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Goal
	for _, g := range f.goals {
		if g.BattleID == battleID && g.RoundNumber == round {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b Goal) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeStore) SetGoalLock(_ context.Context, id int64, locked bool) (*Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	g.LockedIn = locked
	cp := *g
	return &cp, nil
}

func (f *fakeStore) SetGoalRoll(_ context.Context, id int64, roll int) (*Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	g.DiceRoll = &roll
	cp := *g
	return &cp, nil
}

func (f *fakeStore) SetGoalResolution(_ context.Context, id int64, dc int, success bool, modifier int) (*Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	g.DCRequired = &dc
	g.Success = &success
	g.ModifierApplied = modifier
	g.ExecutorCredited = true
	cp := *g
	return &cp, nil
}

func (f *fakeStore) ListBattleGoals(_ context.Context, battleID int64) ([]Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Goal
	for _, g := range f.goals {
		if g.BattleID == battleID {
			out = append(out, *g)
		}
	}
	slices.SortFunc(out, func(a, b Goal) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeStore) CreateInvitation(_ context.Context, inv *Invitation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.invitations {
		if existing.BattleID == inv.BattleID && existing.PlayerID == inv.PlayerID {
			return false, nil
		}
	}
	inv.ID = f.id()
	cp := *inv
	f.invitations[inv.ID] = &cp
	return true, nil
}

func (f *fakeStore) ListBattleInvitations(_ context.Context, battleID int64) ([]Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Invitation
	for _, inv := range f.invitations {
		if inv.BattleID == battleID {
			out = append(out, *inv)
		}
	}
	slices.SortFunc(out, func(a, b Invitation) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (f *fakeStore) ListPendingInvitations(_ context.Context, playerID, campaignID int64) ([]Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Invitation
	for _, inv := range f.invitations {
		b, ok := f.battles[inv.BattleID]
		if !ok || inv.PlayerID != playerID || b.CampaignID != campaignID || inv.Status != InvitationPending {
			continue
		}
		cp := *inv
		cp.BattleName = b.Name
		cp.BattleStatus = b.Status
		cp.CurrentRound = b.CurrentRound
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b Invitation) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (f *fakeStore) RespondInvitation(_ context.Context, id int64, status InvitationStatus) (*Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if inv.Status != InvitationPending {
		return nil, ErrConflict
	}
	inv.Status = status
	cp := *inv
	return &cp, nil
}

func (f *fakeStore) AddArmyHistory(_ context.Context, h *ArmyHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("AddArmyHistory"); err != nil {
		return err
	}
	h.ID = f.id()
	f.history = append(f.history, *h)
	return nil
}

// resolveWithoutCredit records a ruling the way an external tool might, leaving
// the executor credit to ApplyModifiers.
func (f *fakeStore) resolveWithoutCredit(id int64, success bool, modifier int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.goals[id]
	g.Success = &success
	g.ModifierApplied = modifier
}
