package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/warband-backend/internal/battle"
	"github.com/DoyleJ11/warband-backend/internal/combat"
	"github.com/DoyleJ11/warband-backend/internal/engine"
	"github.com/DoyleJ11/warband-backend/pkg/types"
)

// commandTimeout bounds the persistence work of a single client command.
const commandTimeout = 5 * time.Second

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	ClientID  string
	RequestID string
	Cmd       Command
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan types.Frame // where this client wants to receive frames
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

// Publish broadcasts a frame produced outside the lobby, such as an HTTP
// battle update, to every client in the campaign.
type Publish struct {
	Frame types.Frame
}

func (Publish) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

// Retire asks an idle lobby to stop. The lobby replies false and keeps running
// when a client joined in the meantime.
type Retire struct {
	Reply chan bool
}

func (Retire) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Version    int
	NumClients int
}

// Combat is the skirmish coordinator the lobby drives.
type Combat interface {
	Invite(ctx context.Context, inv combat.Invite) (combat.Outcome, error)
	Accept(ctx context.Context, campaignID, characterID, playerID int64) (combat.Outcome, error)
	NextTurn(ctx context.Context, campaignID int64) (combat.Outcome, error)
	Reset(ctx context.Context, campaignID int64) (combat.Outcome, error)
	ReportMovement(ctx context.Context, campaignID int64, combatantID string, remaining int) (combat.Outcome, error)
	Snapshot(ctx context.Context, campaignID int64) (engine.State, error)
}

// Goals is the part of the battle lifecycle players reach over the socket.
type Goals interface {
	CampaignOf(ctx context.Context, battleID int64) (int64, error)
	Goal(ctx context.Context, goalID int64) (*battle.Goal, error)
	SetGoal(ctx context.Context, sel battle.GoalSelection) (*battle.Goal, bool, error)
	RecordGoalRoll(ctx context.Context, goalID int64, roll int) (*battle.Goal, error)
}

type Deps struct {
	Combat Combat
	Goals  Goals
	Logger *zap.Logger
	// Now stamps outgoing payloads. Defaults to time.Now.
	Now func() time.Time
	// OnIdle runs on the lobby goroutine when the last client is gone. It
	// must not block.
	OnIdle func(*Lobby)
}

type Lobby struct {
	campaignID int64
	inbox      chan Msg
	version    int
	clients    map[string]chan types.Frame
	deps       Deps
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewLobby(parent context.Context, campaignID int64, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	l := &Lobby{
		campaignID: campaignID,
		inbox:      make(chan Msg, 64), // Small buffer
		clients:    make(map[string]chan types.Frame),
		deps:       deps,
		logger:     deps.Logger.Named("lobby").With(zap.Int64("campaign_id", campaignID)),
		ctx:        ctx,
		cancel:     cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + bring it up to date immediately
				l.clients[msg.ClientID] = msg.Outbox
				l.sync(msg.ClientID)
				l.logger.Debug("client joined", zap.String("client_id", msg.ClientID), zap.Int("clients", len(l.clients)))

			case Leave:
				// Closing releases the transport's writer.
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch)
					delete(l.clients, msg.ClientID)
					l.checkIdle()
				}

			case FromClient:
				l.handle(msg)

			case Publish:
				l.version++
				l.broadcast(msg.Frame)

			case GetState:
				// test-only: reflect internal state without data races
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
				}

			case Retire:
				if len(l.clients) > 0 {
					msg.Reply <- false
					break
				}
				msg.Reply <- true
				l.shutdown()
				return

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// sync pushes the current combat and movement state to a joining client.
func (l *Lobby) sync(clientID string) {
	ctx, cancel := context.WithTimeout(l.ctx, commandTimeout)
	defer cancel()

	snap, err := l.deps.Combat.Snapshot(ctx, l.campaignID)
	if err != nil {
		l.logger.Warn("failed to load combat snapshot for join", zap.String("client_id", clientID), zap.Error(err))
		return
	}
	if len(snap.Movement) > 0 {
		l.send(clientID, types.Frame{
			Event:   types.EvtBattleMovementSync,
			Payload: types.MovementPayload{MovementState: snap.Movement},
		})
	}
	if snap.Combat != nil {
		l.send(clientID, types.Frame{
			Event:   types.EvtBattleCombatSync,
			Payload: types.NewCombatPayload(snap.Combat, l.deps.Now().UTC()),
		})
	}
}

func (l *Lobby) handle(msg FromClient) {
	ctx, cancel := context.WithTimeout(l.ctx, commandTimeout)
	defer cancel()

	res, err := msg.Cmd.run(ctx, l)
	for _, f := range res.broadcast {
		if res.skipSender {
			l.broadcastExcept(msg.ClientID, f)
		} else {
			l.broadcast(f)
		}
	}
	if len(res.broadcast) > 0 {
		l.version++
	}

	if err != nil {
		l.logger.Warn("client command failed",
			zap.String("client_id", msg.ClientID),
			zap.String("command", msg.Cmd.Name()),
			zap.Error(err))
		l.send(msg.ClientID, errorFrame(msg.RequestID, err))
		return
	}
	l.send(msg.ClientID, types.Frame{
		Event:     types.EvtAck,
		RequestID: msg.RequestID,
		Payload:   types.AckPayload{Event: msg.Cmd.Name()},
	})
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more frames
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) send(clientID string, f types.Frame) {
	ch, ok := l.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- f:
	default:
		l.drop(clientID, ch)
	}
}

func (l *Lobby) broadcast(f types.Frame) {
	l.broadcastExcept("", f)
}

func (l *Lobby) broadcastExcept(skip string, f types.Frame) {
	for id, ch := range l.clients {
		if id == skip {
			continue
		}
		select {
		case ch <- f:
			//ok
		default:
			// Client is slow/full - drop them.
			l.drop(id, ch)
		}
	}
}

func (l *Lobby) drop(clientID string, ch chan types.Frame) {
	close(ch)
	delete(l.clients, clientID)
	l.logger.Info("dropped slow client", zap.String("client_id", clientID))
	l.checkIdle()
}

func (l *Lobby) checkIdle() {
	if len(l.clients) == 0 && l.deps.OnIdle != nil {
		l.deps.OnIdle(l)
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) CampaignID() int64 { return l.campaignID }

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
