package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

type movePayload struct {
	TokenIndex int `json:"tokenIndex"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := s.manager.GetRoom(r.Context(), code); err != nil {
		writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "join" {
		sendWSError(ctx, conn, errorPayload{Message: "first message must be a join", Status: http.StatusBadRequest})
		return
	}
	var join joinPayload
	if err := json.Unmarshal(msg.Payload, &join); err != nil || strings.TrimSpace(join.UserID) == "" {
		sendWSError(ctx, conn, errorPayload{Message: "invalid join payload", Status: http.StatusBadRequest})
		return
	}
	userID := strings.TrimSpace(join.UserID)

	if _, err := s.manager.JoinRoom(ctx, code, userID, strings.TrimSpace(join.Name)); err != nil {
		sendWSError(ctx, conn, errPayload(err))
		return
	}

	hub := s.manager.Hub()
	sub := hub.Subscribe(code, userID)
	defer hub.Unsubscribe(code, sub)
	// The join broadcast went out before we subscribed.
	if snap, err := s.manager.GetRoom(ctx, code); err == nil {
		hub.Deliver(code, sub, snap)
	}

	replies := make(chan errorPayload, 16)

	// Writer goroutine: the only place that writes after the join
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.Send:
				if !ok {
					return
				}
				if err := writeWS(ctx, conn, "state", snap); err != nil {
					return
				}
			case e := <-replies:
				if err := writeWS(ctx, conn, "error", e); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			reply(replies, errorPayload{Message: "invalid message", Status: http.StatusBadRequest})
			continue
		}
		if err := s.handleMessage(ctx, code, userID, msg); err != nil {
			reply(replies, errPayload(err))
		}
	}

	// Membership stays so the player can reconnect.
	log.Debug().Str("code", code).Str("user", userID).Msg("player disconnected")
}

// handleMessage applies one client command. Successful commands reach every
// client through the hub, so only failures are answered directly.
func (s *Server) handleMessage(ctx context.Context, code, userID string, msg WSMessage) error {
	switch msg.Type {
	case "start":
		_, err := s.manager.StartGame(ctx, code, userID)
		return err
	case "roll":
		_, _, err := s.manager.RollDice(ctx, code, userID)
		return err
	case "move":
		var mp movePayload
		if err := json.Unmarshal(msg.Payload, &mp); err != nil {
			return wsError{"invalid move payload"}
		}
		_, _, err := s.manager.MoveToken(ctx, code, userID, mp.TokenIndex)
		return err
	default:
		return wsError{"unknown message type: " + msg.Type}
	}
}

type wsError struct{ msg string }

func (e wsError) Error() string { return e.msg }

func errPayload(err error) errorPayload {
	if e, ok := err.(wsError); ok {
		return errorPayload{Message: e.msg, Status: http.StatusBadRequest}
	}
	return errorPayload{Message: err.Error(), Status: statusFor(err)}
}

func reply(replies chan errorPayload, e errorPayload) {
	select {
	case replies <- e:
	default:
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, msgType string, payload any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(WSMessage{Type: msgType, Payload: p})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, msg)
}

func sendWSError(ctx context.Context, conn *websocket.Conn, e errorPayload) {
	writeWS(ctx, conn, "error", e)
}
