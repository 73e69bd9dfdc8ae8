package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/warband-backend/internal/battle"
	"github.com/DoyleJ11/warband-backend/internal/combat"
	"github.com/DoyleJ11/warband-backend/internal/engine"
	"github.com/DoyleJ11/warband-backend/internal/session"
	"github.com/DoyleJ11/warband-backend/pkg/types"
)

const campaign = int64(42)

// fakeCombat runs the real reducer over an in-memory session. Characters join
// with initiative equal to their id.
type fakeCombat struct {
	sessions *session.Memory
	resetErr error
}

func (f *fakeCombat) apply(ctx context.Context, campaignID int64, cmd engine.Command) (combat.Outcome, error) {
	var events []engine.Event
	st, err := f.sessions.Mutate(ctx, campaignID, func(s engine.State) (engine.State, error) {
		evs, next, err := engine.Apply(s, cmd)
		events = evs
		return next, err
	})
	return combat.Outcome{Events: events, State: st}, err
}

func (f *fakeCombat) Invite(ctx context.Context, inv combat.Invite) (combat.Outcome, error) {
	if !inv.IsMonster {
		return combat.Outcome{}, nil
	}
	return f.apply(ctx, inv.CampaignID, engine.Command{Type: engine.CmdAddCombatants, Combatants: []engine.Combatant{
		{ID: combat.MonsterCombatantID(inv.CharacterID), Name: "Goblin #1", Initiative: 1, MovementSpeed: 30, IsMonster: true},
	}})
}

func (f *fakeCombat) Accept(ctx context.Context, campaignID, characterID, playerID int64) (combat.Outcome, error) {
	return f.apply(ctx, campaignID, engine.Command{Type: engine.CmdAddCombatants, Combatants: []engine.Combatant{
		{ID: combat.CharacterCombatantID(characterID), PlayerID: playerID, Initiative: int(characterID), MovementSpeed: 30},
	}})
}

func (f *fakeCombat) NextTurn(ctx context.Context, campaignID int64) (combat.Outcome, error) {
	return f.apply(ctx, campaignID, engine.Command{Type: engine.CmdNextTurn})
}

func (f *fakeCombat) Reset(ctx context.Context, campaignID int64) (combat.Outcome, error) {
	events, _, _ := engine.Apply(engine.State{}, engine.Command{Type: engine.CmdReset})
	_ = f.sessions.Delete(ctx, campaignID)
	return combat.Outcome{Events: events}, f.resetErr
}

func (f *fakeCombat) ReportMovement(ctx context.Context, campaignID int64, combatantID string, remaining int) (combat.Outcome, error) {
	return f.apply(ctx, campaignID, engine.Command{Type: engine.CmdReportMovement, CombatantID: combatantID, Remaining: remaining})
}

func (f *fakeCombat) Snapshot(ctx context.Context, campaignID int64) (engine.State, error) {
	return f.sessions.Snapshot(ctx, campaignID)
}

// fakeGoals places every battle in the test campaign unless campaigns says
// otherwise. Goal ids map to battle id goalID*10.
type fakeGoals struct {
	err       error
	campaigns map[int64]int64
	calls     int
}

func (f *fakeGoals) CampaignOf(_ context.Context, battleID int64) (int64, error) {
	if id, ok := f.campaigns[battleID]; ok {
		return id, nil
	}
	return campaign, nil
}

func (f *fakeGoals) Goal(_ context.Context, goalID int64) (*battle.Goal, error) {
	return &battle.Goal{ID: goalID, BattleID: goalID * 10}, nil
}

func (f *fakeGoals) SetGoal(_ context.Context, sel battle.GoalSelection) (*battle.Goal, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	return &battle.Goal{ID: 9, BattleID: sel.BattleID, ParticipantID: sel.ParticipantID, GoalName: sel.GoalName}, true, nil
}

func (f *fakeGoals) RecordGoalRoll(_ context.Context, goalID int64, roll int) (*battle.Goal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &battle.Goal{ID: goalID, DiceRoll: &roll}, nil
}

var fixedNow = time.Date(2026, 1, 8, 12, 0, 0, 0, time.UTC)

func newTestLobby(t *testing.T) (*Lobby, *fakeCombat, *fakeGoals) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fc := &fakeCombat{sessions: session.NewMemory()}
	fg := &fakeGoals{}
	l := NewLobby(ctx, campaign, Deps{Combat: fc, Goals: fg, Now: func() time.Time { return fixedNow }})
	return l, fc, fg
}

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan types.Frame, within time.Duration) types.Frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return f
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return types.Frame{} // unreachable
	}
}

func recvNoFrame(t *testing.T, ch <-chan types.Frame, within time.Duration) {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further frames possible
			return
		}
		t.Fatalf("expected no frame within %v, but got: %+v", within, f)
	case <-time.After(within):
		// good: no frame
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func view(t *testing.T, l *Lobby) View {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	return recvView(t, reply, 100*time.Millisecond)
}

func join(l *Lobby, id string, buffer int) chan types.Frame {
	out := make(chan types.Frame, buffer)
	l.Inbox() <- Join{ClientID: id, Outbox: out}
	return out
}

func expectEvent(t *testing.T, f types.Frame, event string) {
	t.Helper()
	if f.Event != event {
		t.Fatalf("want %s frame, got %s: %+v", event, f.Event, f.Payload)
	}
}

func TestLobby_JoinWithoutSessionSendsNothing(t *testing.T) {
	l, _, _ := newTestLobby(t)
	out := join(l, "c1", 4)

	recvNoFrame(t, out, 50*time.Millisecond)
	if v := view(t, l); v.NumClients != 1 {
		t.Fatalf("want 1 client, got %d", v.NumClients)
	}
}

func TestLobby_JoinSyncsCombatAndMovement(t *testing.T) {
	l, fc, _ := newTestLobby(t)
	ctx := context.Background()
	if _, err := fc.Accept(ctx, campaign, 7, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := fc.ReportMovement(ctx, campaign, "7", 12); err != nil {
		t.Fatal(err)
	}

	out := join(l, "late", 4)

	mv := recvFrame(t, out, 100*time.Millisecond)
	expectEvent(t, mv, types.EvtBattleMovementSync)
	if got := mv.Payload.(types.MovementPayload).MovementState["7"]; got != 12 {
		t.Fatalf("synced movement = %d, want 12", got)
	}

	cb := recvFrame(t, out, 100*time.Millisecond)
	expectEvent(t, cb, types.EvtBattleCombatSync)
	payload := cb.Payload.(types.CombatPayload)
	if len(payload.Combatants) != 1 || payload.CurrentTurnIndex != engine.NotStarted {
		t.Fatalf("unexpected combat sync: %+v", payload)
	}
}

func TestLobby_AcceptBroadcastsThenAcksSender(t *testing.T) {
	l, _, _ := newTestLobby(t)
	sender := join(l, "c1", 4)
	other := join(l, "c2", 4)

	l.Inbox() <- FromClient{ClientID: "c1", RequestID: "r-1", Cmd: AcceptCombatInvite{CharacterID: 5, PlayerID: 1}}

	for _, ch := range []chan types.Frame{sender, other} {
		f := recvFrame(t, ch, 100*time.Millisecond)
		expectEvent(t, f, types.EvtCombatantsUpdated)
		if got := f.Payload.(types.CombatPayload).InitiativeOrder; len(got) != 1 || got[0] != "5" {
			t.Fatalf("initiative order = %v", got)
		}
	}

	ack := recvFrame(t, sender, 100*time.Millisecond)
	expectEvent(t, ack, types.EvtAck)
	if ack.RequestID != "r-1" || ack.Payload.(types.AckPayload).Event != types.CmdAcceptCombatInvite {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	recvNoFrame(t, other, 50*time.Millisecond)

	if v := view(t, l); v.Version != 1 {
		t.Fatalf("want version 1, got %d", v.Version)
	}
}

func TestLobby_FailedCommandAnswersSenderOnly(t *testing.T) {
	cases := []struct {
		name     string
		setup    func(l *Lobby, sender chan types.Frame)
		cmd      Command
		wantCode string
	}{
		{
			name:     "next turn without combat",
			cmd:      AdvanceTurn{},
			wantCode: "no_combat",
		},
		{
			name: "accept twice",
			setup: func(l *Lobby, sender chan types.Frame) {
				l.Inbox() <- FromClient{ClientID: "c1", RequestID: "first", Cmd: AcceptCombatInvite{CharacterID: 5}}
			},
			cmd:      AcceptCombatInvite{CharacterID: 5},
			wantCode: "already_in_combat",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _, _ := newTestLobby(t)
			sender := join(l, "c1", 8)
			other := join(l, "c2", 8)
			if tc.setup != nil {
				tc.setup(l, sender)
				recvFrame(t, sender, 100*time.Millisecond) // broadcast
				recvFrame(t, sender, 100*time.Millisecond) // ack
				recvFrame(t, other, 100*time.Millisecond)  // broadcast
			}

			l.Inbox() <- FromClient{ClientID: "c1", RequestID: "r-2", Cmd: tc.cmd}

			f := recvFrame(t, sender, 100*time.Millisecond)
			expectEvent(t, f, types.EvtError)
			if f.RequestID != "r-2" {
				t.Fatalf("error frame request id = %q", f.RequestID)
			}
			if got := f.Payload.(types.ErrorPayload).Code; got != tc.wantCode {
				t.Fatalf("code = %q, want %q", got, tc.wantCode)
			}
			recvNoFrame(t, other, 50*time.Millisecond)
		})
	}
}

func TestLobby_MovementSkipsSender(t *testing.T) {
	l, fc, _ := newTestLobby(t)
	sender := join(l, "c1", 4)
	other := join(l, "c2", 4)

	move := types.CharacterBattleMove{CharacterID: 3, CharacterName: "Aria", X: 10, Y: 20, RemainingMovement: 15}
	l.Inbox() <- FromClient{ClientID: "c1", RequestID: "m", Cmd: MoveCharacter{Move: move}}

	f := recvFrame(t, other, 100*time.Millisecond)
	expectEvent(t, f, types.EvtCharacterBattleMoved)
	if got := f.Payload.(types.CharacterMovedPayload); got.RemainingMovement != 15 || !got.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected payload: %+v", got)
	}

	expectEvent(t, recvFrame(t, sender, 100*time.Millisecond), types.EvtAck)

	snap, _ := fc.Snapshot(context.Background(), campaign)
	if snap.Movement["3"] != 15 {
		t.Fatalf("movement not stored: %+v", snap.Movement)
	}
}

func TestLobby_ParticipantMoveWithoutBudgetOnlyBroadcasts(t *testing.T) {
	l, fc, _ := newTestLobby(t)
	_ = join(l, "c1", 4)
	other := join(l, "c2", 4)

	l.Inbox() <- FromClient{ClientID: "c1", Cmd: MoveParticipant{Move: types.BattlefieldParticipantMove{BattleID: 1, ParticipantID: 2, X: 5, Y: 6}}}
	expectEvent(t, recvFrame(t, other, 100*time.Millisecond), types.EvtBattlefieldParticipantMoved)

	if _, ok, _ := fc.sessions.Get(context.Background(), campaign); ok {
		t.Fatalf("a move without remaining movement should not create a session")
	}
}

func TestLobby_ResetPartialFailureStillBroadcasts(t *testing.T) {
	l, fc, _ := newTestLobby(t)
	fc.resetErr = errors.New("db down")
	sender := join(l, "c1", 4)
	other := join(l, "c2", 4)

	l.Inbox() <- FromClient{ClientID: "c1", RequestID: "x", Cmd: ResetCombat{}}

	expectEvent(t, recvFrame(t, other, 100*time.Millisecond), types.EvtCombatReset)
	expectEvent(t, recvFrame(t, sender, 100*time.Millisecond), types.EvtCombatReset)
	f := recvFrame(t, sender, 100*time.Millisecond)
	expectEvent(t, f, types.EvtError)
	if got := f.Payload.(types.ErrorPayload); got.Code != "internal" || got.Message != "internal error" {
		t.Fatalf("unexpected error payload: %+v", got)
	}
}

func TestLobby_SubmitGoal(t *testing.T) {
	l, _, fg := newTestLobby(t)
	sender := join(l, "c1", 4)

	sel := battle.GoalSelection{BattleID: 3, RoundNumber: 1, ParticipantID: 11, GoalName: "Cavalry Charge"}
	l.Inbox() <- FromClient{ClientID: "c1", RequestID: "g1", Cmd: SubmitGoal{Selection: sel}}

	f := recvFrame(t, sender, 100*time.Millisecond)
	expectEvent(t, f, types.EvtBattleGoalSelected)
	if p := f.Payload.(GoalSelectedPayload); p.BattleID != 3 || !p.Created || p.Goal.ParticipantID != 11 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	expectEvent(t, recvFrame(t, sender, 100*time.Millisecond), types.EvtAck)

	fg.err = battle.ErrGoalNotEligible
	l.Inbox() <- FromClient{ClientID: "c1", RequestID: "g2", Cmd: SubmitGoal{Selection: sel}}
	f = recvFrame(t, sender, 100*time.Millisecond)
	expectEvent(t, f, types.EvtError)
	if got := f.Payload.(types.ErrorPayload).Code; got != "invalid" {
		t.Fatalf("code = %q, want invalid", got)
	}
}

func TestLobby_RollGoalBroadcastsTotal(t *testing.T) {
	l, _, _ := newTestLobby(t)
	sender := join(l, "c1", 4)

	l.Inbox() <- FromClient{ClientID: "c1", Cmd: RollGoal{Roll: types.RollGoal{GoalID: 4, ParticipantID: 2, DiceRoll: 13, TotalModifier: 3}}}
	f := recvFrame(t, sender, 100*time.Millisecond)
	expectEvent(t, f, types.EvtBattleGoalRolled)
	if got := f.Payload.(types.GoalRolledPayload).Total; got != 16 {
		t.Fatalf("total = %d, want 16", got)
	}
}

func TestLobby_GoalsOfOtherCampaignsAreNotFound(t *testing.T) {
	l, _, fg := newTestLobby(t)
	fg.campaigns = map[int64]int64{3: 7, 40: 7}
	sender := join(l, "c1", 4)
	other := join(l, "c2", 4)

	cmds := []Command{
		SubmitGoal{Selection: battle.GoalSelection{BattleID: 3, RoundNumber: 1, ParticipantID: 11, GoalName: "Cavalry Charge"}},
		RollGoal{Roll: types.RollGoal{GoalID: 4, ParticipantID: 2, DiceRoll: 13}},
	}
	for _, cmd := range cmds {
		l.Inbox() <- FromClient{ClientID: "c1", RequestID: "r", Cmd: cmd}
		f := recvFrame(t, sender, 100*time.Millisecond)
		expectEvent(t, f, types.EvtError)
		if got := f.Payload.(types.ErrorPayload).Code; got != "not_found" {
			t.Fatalf("%s: code = %q, want not_found", cmd.Name(), got)
		}
	}
	recvNoFrame(t, other, 50*time.Millisecond)
	if fg.calls != 0 {
		t.Fatalf("goals of another campaign were written %d times", fg.calls)
	}
}

func TestLobby_BattlefieldMovementReset(t *testing.T) {
	l, fc, _ := newTestLobby(t)
	sender := join(l, "c1", 4)
	other := join(l, "c2", 4)

	reset := types.BattlefieldMovementReset{BattleID: 3, MovementState: map[string]int{"11": 6, "12": 8}}
	l.Inbox() <- FromClient{ClientID: "c1", RequestID: "m1", Cmd: ResetBattlefieldMovement{Reset: reset}}

	// Everyone, the sender included, gets the new budgets.
	for _, out := range []chan types.Frame{other, sender} {
		f := recvFrame(t, out, 100*time.Millisecond)
		expectEvent(t, f, types.EvtBattlefieldMovementReset)
		if got := f.Payload.(types.MovementResetPayload); got.MovementState["12"] != 8 || !got.Timestamp.Equal(fixedNow) {
			t.Fatalf("unexpected payload: %+v", got)
		}
	}
	expectEvent(t, recvFrame(t, sender, 100*time.Millisecond), types.EvtAck)

	snap, _ := fc.Snapshot(context.Background(), campaign)
	if snap.Movement[combat.ParticipantCombatantID(11)] != 6 || snap.Movement[combat.ParticipantCombatantID(12)] != 8 {
		t.Fatalf("movement not stored: %+v", snap.Movement)
	}
}

func TestLobby_BattlefieldMovementResetRejectsBadKeys(t *testing.T) {
	l, fc, _ := newTestLobby(t)
	sender := join(l, "c1", 4)

	reset := types.BattlefieldMovementReset{BattleID: 3, MovementState: map[string]int{"11": 6, "scout": 6}}
	l.Inbox() <- FromClient{ClientID: "c1", Cmd: ResetBattlefieldMovement{Reset: reset}}

	f := recvFrame(t, sender, 100*time.Millisecond)
	expectEvent(t, f, types.EvtError)
	if got := f.Payload.(types.ErrorPayload).Code; got != "invalid" {
		t.Fatalf("code = %q, want invalid", got)
	}
	if _, ok, _ := fc.sessions.Get(context.Background(), campaign); ok {
		t.Fatalf("a rejected reset should not create a session")
	}
}

func TestLobby_PublishReachesEveryone(t *testing.T) {
	l, _, _ := newTestLobby(t)
	a := join(l, "a", 2)
	b := join(l, "b", 2)

	l.Inbox() <- Publish{Frame: types.Frame{Event: types.EvtBattleRoundAdvanced, Payload: map[string]int{"round": 2}}}

	expectEvent(t, recvFrame(t, a, 100*time.Millisecond), types.EvtBattleRoundAdvanced)
	expectEvent(t, recvFrame(t, b, 100*time.Millisecond), types.EvtBattleRoundAdvanced)
	if v := view(t, l); v.Version != 1 {
		t.Fatalf("want version 1, got %d", v.Version)
	}
}

func TestLobby_SlowClientIsDropped(t *testing.T) {
	l, _, _ := newTestLobby(t)
	slow := join(l, "slow", 0) // unbuffered: every non-blocking send fails
	fast := join(l, "fast", 2)

	l.Inbox() <- Publish{Frame: types.Frame{Event: types.EvtBattleDeleted}}
	expectEvent(t, recvFrame(t, fast, 100*time.Millisecond), types.EvtBattleDeleted)

	// GetState is served after the publish, so the drop has happened by now.
	if v := view(t, l); v.NumClients != 1 {
		t.Fatalf("want 1 client after drop, got %d", v.NumClients)
	}
	if _, ok := <-slow; ok {
		t.Fatalf("slow client outbox should be closed")
	}
}

func TestLobby_ShutdownClosesOutboxes(t *testing.T) {
	l, _, _ := newTestLobby(t)
	out := join(l, "c1", 1)

	l.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("outbox not closed after shutdown")
	}
}

func TestLobby_LeaveClosesOutbox(t *testing.T) {
	l, _, _ := newTestLobby(t)
	out := join(l, "c1", 1)

	l.Inbox() <- Leave{ClientID: "c1"}

	if v := view(t, l); v.NumClients != 0 {
		t.Fatalf("want 0 clients, got %d", v.NumClients)
	}
	if _, ok := <-out; ok {
		t.Fatalf("expected closed outbox after leave")
	}
}

func TestLobby_LastLeaveReportsIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	idle := make(chan *Lobby, 2)
	l := NewLobby(ctx, campaign, Deps{
		Combat: &fakeCombat{sessions: session.NewMemory()},
		OnIdle: func(lb *Lobby) { idle <- lb },
	})
	_ = join(l, "c1", 1)
	_ = join(l, "c2", 1)

	l.Inbox() <- Leave{ClientID: "c1"}
	if v := view(t, l); v.NumClients != 1 {
		t.Fatalf("want 1 client, got %d", v.NumClients)
	}
	select {
	case <-idle:
		t.Fatalf("idle reported with a client connected")
	default:
	}

	l.Inbox() <- Leave{ClientID: "c2"}
	select {
	case got := <-idle:
		if got != l {
			t.Fatalf("idle reported for another lobby")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("idle not reported after the last leave")
	}
}

func TestLobby_RetireRefusedWhileClientsRemain(t *testing.T) {
	l, _, _ := newTestLobby(t)
	_ = join(l, "c1", 1)

	reply := make(chan bool, 1)
	l.Inbox() <- Retire{Reply: reply}
	if <-reply {
		t.Fatalf("lobby retired with a client connected")
	}
	if v := view(t, l); v.NumClients != 1 {
		t.Fatalf("want 1 client, got %d", v.NumClients)
	}

	l.Inbox() <- Leave{ClientID: "c1"}
	l.Inbox() <- Retire{Reply: reply}
	if !<-reply {
		t.Fatalf("idle lobby refused to retire")
	}
	select {
	case <-l.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("retired lobby still running")
	}
}
