package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/warband-backend/internal/battle"
	"github.com/DoyleJ11/warband-backend/internal/hub"
	"github.com/DoyleJ11/warband-backend/internal/lobby"
	"github.com/DoyleJ11/warband-backend/pkg/types"
)

var errUnknownEvent = errors.New("unknown event")

const (
	outboxSize   = 16
	writeTimeout = 3 * time.Second
	// Clients that stay silent longer than this are disconnected.
	readTimeout  = 5 * time.Minute
)

// Handler upgrades GET /ws?campaign=<id> and joins the campaign's lobby.
func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := strconv.ParseInt(r.URL.Query().Get("campaign"), 10, 64)
		if err != nil || campaignID <= 0 {
			http.Error(w, "missing or invalid campaign", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan types.Frame, outboxSize)
		clientID := uuid.NewString()
		log := logger.With(zap.Int64("campaign_id", campaignID), zap.String("client_id", clientID))

		// The outbox buffers the join sync until the writer starts.
		lb, err := h.Join(r.Context(), campaignID, clientID, out)
		if err != nil {
			log.Warn("lobby unavailable", zap.Error(err))
			conn.Close(websocket.StatusTryAgainLater, "lobby unavailable")
			return
		}
		defer func() {
			select {
			case lb.Inbox() <- lobby.Leave{ClientID: clientID}:
			case <-lb.Done():
			case <-time.After(writeTimeout):
			}
		}()
		log.Info("client connected")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for f := range out {
				if err := writeFrame(writeCtx, conn, f); err != nil {
					log.Debug("write failed", zap.Error(err))
				}
			}
			// Lobby closed our outbox: it shut down or dropped us as slow.
			_ = conn.Close(websocket.StatusPolicyViolation, "disconnected")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Info("client disconnected")
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeFrame(r.Context(), conn, invalidFrame("", "bad json"))
				continue
			}

			cmd, err := toLobbyCommand(cm)
			if err != nil {
				_ = writeFrame(r.Context(), conn, invalidFrame(cm.RequestID, err.Error()))
				continue
			}

			select {
			case lb.Inbox() <- lobby.FromClient{ClientID: clientID, RequestID: cm.RequestID, Cmd: cmd}:
			case <-lb.Done():
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f types.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func invalidFrame(requestID, msg string) types.Frame {
	return types.Frame{
		Event:     types.EvtError,
		RequestID: requestID,
		Payload:   types.ErrorPayload{Code: "invalid", Message: msg},
	}
}

func toLobbyCommand(m types.ClientMessage) (lobby.Command, error) {
	switch m.Event {
	case types.CmdInviteToCombat:
		var p types.InviteToCombat
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return lobby.InviteToCombat{CharacterID: p.CharacterID, TargetPlayerID: p.TargetPlayerID, IsMonster: p.IsMonster}, nil

	case types.CmdAcceptCombatInvite:
		var p types.AcceptCombatInvite
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return lobby.AcceptCombatInvite{CharacterID: p.CharacterID, PlayerID: p.PlayerID}, nil

	case types.CmdNextTurn:
		return lobby.AdvanceTurn{}, nil

	case types.CmdResetCombat:
		return lobby.ResetCombat{}, nil

	case types.CmdCharacterBattleMove:
		var p types.CharacterBattleMove
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return lobby.MoveCharacter{Move: p}, nil

	case types.CmdBattlefieldParticipantMove:
		var p types.BattlefieldParticipantMove
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return lobby.MoveParticipant{Move: p}, nil

	case types.CmdSubmitGoal:
		var p types.SubmitGoal
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return lobby.SubmitGoal{Selection: battle.GoalSelection{
			BattleID:            p.BattleID,
			RoundNumber:         p.RoundNumber,
			ParticipantID:       p.ParticipantID,
			GoalKey:             p.GoalKey,
			GoalName:            p.GoalName,
			TargetParticipantID: p.TargetParticipantID,
			TestType:            p.TestType,
			CharacterModifier:   p.CharacterModifier,
			ArmyStatModifier:    p.ArmyStatModifier,
		}}, nil

	case types.CmdRollGoal:
		var p types.RollGoal
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return lobby.RollGoal{Roll: p}, nil

	case types.CmdBattlefieldMovementReset:
		var p types.BattlefieldMovementReset
		if err := decode(m, &p); err != nil {
			return nil, err
		}
		return lobby.ResetBattlefieldMovement{Reset: p}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, m.Event)
	}
}

func decode(m types.ClientMessage, v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", m.Event)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: bad payload: %w", m.Event, err)
	}
	return nil
}
