package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/warband-backend/internal/lobby"
	"github.com/DoyleJ11/warband-backend/pkg/types"
)

var errLobbyStopped = errors.New("lobby stopped")

type HubMsg interface{ isHubMsg() }

type GetLobby struct {
	CampaignID int64
	Reply      chan *lobby.Lobby
}

// JoinLobby registers a client with the campaign's lobby, starting it on
// first use, and replies with the lobby the client joined.
type JoinLobby struct {
	CampaignID int64
	ClientID   string
	Outbox     chan types.Frame
	Reply      chan *lobby.Lobby
}

type RemoveLobby struct {
	CampaignID int64
}

// Publish forwards a frame to the campaign's lobby. Campaigns with nobody
// connected have no lobby, and the frame is dropped.
type Publish struct {
	CampaignID int64
	Frame      types.Frame
}

type ShutdownHub struct{}

// lobbyIdle reports a lobby whose last client left.
type lobbyIdle struct{ lb *lobby.Lobby }

type Hub struct {
	inbox   chan HubMsg
	lobbies map[int64]*lobby.Lobby
	deps    lobby.Deps
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func (GetLobby) isHubMsg()    {}
func (JoinLobby) isHubMsg()   {}
func (RemoveLobby) isHubMsg() {}
func (Publish) isHubMsg()     {}
func (ShutdownHub) isHubMsg() {}
func (lobbyIdle) isHubMsg()   {}

// NewHub starts the registry. Every lobby it creates shares deps, and is
// retired once its last client leaves.
func NewHub(parent context.Context, deps lobby.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[int64]*lobby.Lobby),
		deps:    deps,
		logger:  deps.Logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.deps.OnIdle = h.idle
	go h.loop()
	return h
}

// idle runs on the lobby goroutine, so it must not block. A lost notice only
// keeps an empty lobby around until its next client leaves.
func (h *Hub) idle(lb *lobby.Lobby) {
	select {
	case h.inbox <- lobbyIdle{lb: lb}:
	default:
		h.logger.Warn("hub inbox full, idle lobby kept", zap.Int64("campaign_id", lb.CampaignID()))
	}
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetLobby:
				msg.Reply <- h.lobbies[msg.CampaignID] // May be nil

			case JoinLobby:
				lb := h.lobbies[msg.CampaignID]
				if lb == nil {
					lb = lobby.NewLobby(h.ctx, msg.CampaignID, h.deps)
					h.lobbies[msg.CampaignID] = lb
					h.logger.Info("lobby started", zap.Int64("campaign_id", msg.CampaignID))
				}
				// Joining before replying keeps a retiring lobby from
				// swallowing the client.
				select {
				case lb.Inbox() <- lobby.Join{ClientID: msg.ClientID, Outbox: msg.Outbox}:
					msg.Reply <- lb
				case <-lb.Done():
					delete(h.lobbies, msg.CampaignID)
					msg.Reply <- nil
				}

			case lobbyIdle:
				h.retire(msg.lb)

			case RemoveLobby:
				if lb := h.lobbies[msg.CampaignID]; lb != nil {
					lb.Inbox() <- lobby.Shutdown{}
					delete(h.lobbies, msg.CampaignID)
				}

			case Publish:
				lb := h.lobbies[msg.CampaignID]
				if lb == nil {
					break
				}
				select {
				case lb.Inbox() <- lobby.Publish{Frame: msg.Frame}:
				default:
					h.logger.Warn("lobby inbox full, dropping frame",
						zap.Int64("campaign_id", msg.CampaignID),
						zap.String("event", msg.Frame.Event))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// retire stops lb unless a client joined after it went idle or it was
// already replaced.
func (h *Hub) retire(lb *lobby.Lobby) {
	id := lb.CampaignID()
	if h.lobbies[id] != lb {
		return
	}
	reply := make(chan bool, 1)
	select {
	case lb.Inbox() <- lobby.Retire{Reply: reply}:
	case <-lb.Done():
		delete(h.lobbies, id)
		return
	}
	select {
	case ok := <-reply:
		if !ok {
			return
		}
	case <-lb.Done():
	case <-h.ctx.Done():
		return
	}
	delete(h.lobbies, id)
	h.logger.Info("lobby retired", zap.Int64("campaign_id", id))
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		select {
		case lb.Inbox() <- lobby.Shutdown{}:
		default:
		}
	}
	clear(h.lobbies)
	h.cancel()
}

// Join is the request/reply form of JoinLobby. Frames for the client arrive
// on out until the lobby closes it.
func (h *Hub) Join(ctx context.Context, campaignID int64, clientID string, out chan types.Frame) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- JoinLobby{CampaignID: campaignID, ClientID: clientID, Outbox: out, Reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case lb := <-reply:
		if lb == nil {
			return nil, errLobbyStopped
		}
		return lb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Publish sends event to everyone connected to the campaign. It never blocks
// past ctx.
func (h *Hub) Publish(ctx context.Context, campaignID int64, event string, payload any) {
	msg := Publish{CampaignID: campaignID, Frame: types.Frame{Event: event, Payload: payload}}
	select {
	case h.inbox <- msg:
	case <-ctx.Done():
		h.logger.Warn("publish abandoned", zap.Int64("campaign_id", campaignID), zap.String("event", event))
	}
}
