package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"

	"ludo/internal/board"
	"ludo/internal/rules"
	"ludo/internal/session"
)

// RPC ids registered with the Nakama runtime.
const (
	RpcCreateRoom = "ludo_create_room"
	RpcJoinRoom   = "ludo_join_room"
	RpcStartGame  = "ludo_start_game"
	RpcRollDice   = "ludo_roll_dice"
	RpcMoveToken  = "ludo_move_token"
	RpcActiveRoom = "ludo_active_room"
)

// gRPC status codes understood by Nakama clients.
const (
	codeInvalidArgument    = 3
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeResourceExhausted  = 8
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

type rpcFunc func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)

type handlers struct {
	mgr *session.Manager
}

// RegisterRPCs registers the room RPCs backed by mgr.
func RegisterRPCs(initializer runtime.Initializer, mgr *session.Manager) error {
	h := &handlers{mgr: mgr}
	rpcs := []struct {
		id string
		fn rpcFunc
	}{
		{RpcCreateRoom, h.createRoom},
		{RpcJoinRoom, h.joinRoom},
		{RpcStartGame, h.startGame},
		{RpcRollDice, h.rollDice},
		{RpcMoveToken, h.moveToken},
		{RpcActiveRoom, h.activeRoom},
	}
	for _, rpc := range rpcs {
		if err := initializer.RegisterRpc(rpc.id, rpc.fn); err != nil {
			return err
		}
	}
	return nil
}

type createRoomRequest struct {
	Mode            string        `json:"mode"`
	RequiredPlayers int           `json:"requiredPlayers"`
	Colors          []board.Color `json:"colors,omitempty"`
	EntryFee        int64         `json:"entryFee,omitempty"`
	Name            string        `json:"name,omitempty"`
}

type roomRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name,omitempty"`
	TokenIndex int    `json:"tokenIndex"`
}

type createRoomResponse struct {
	RoomID string `json:"roomId"`
	Code   string `json:"code"`
}

type rollResponse struct {
	Room   *session.Room     `json:"room"`
	Value  int               `json:"value"`
	Result rules.RollOutcome `json:"result"`
}

type moveResponse struct {
	Room *session.Room    `json:"room"`
	Move rules.MoveResult `json:"move"`
}

func (h *handlers) createRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	var req createRoomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("Invalid payload", codeInvalidArgument)
	}
	room, err := h.mgr.CreateRoom(ctx, session.CreateRoomParams{
		HostID:          userID,
		Name:            displayName(ctx, req.Name),
		Mode:            req.Mode,
		RequiredPlayers: req.RequiredPlayers,
		Colors:          req.Colors,
		EntryFee:        req.EntryFee,
	})
	if err != nil {
		return "", toRuntimeError(logger, userID, err)
	}
	return encode(logger, createRoomResponse{RoomID: room.ID, Code: room.Code})
}

func (h *handlers) joinRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, req, err := roomCall(ctx, payload)
	if err != nil {
		return "", err
	}
	room, err := h.mgr.JoinRoom(ctx, req.Code, userID, displayName(ctx, req.Name))
	if err != nil {
		return "", toRuntimeError(logger, userID, err)
	}
	return encode(logger, room)
}

func (h *handlers) startGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, req, err := roomCall(ctx, payload)
	if err != nil {
		return "", err
	}
	room, err := h.mgr.StartGame(ctx, req.Code, userID)
	if err != nil {
		return "", toRuntimeError(logger, userID, err)
	}
	return encode(logger, room)
}

func (h *handlers) rollDice(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, req, err := roomCall(ctx, payload)
	if err != nil {
		return "", err
	}
	room, res, err := h.mgr.RollDice(ctx, req.Code, userID)
	if err != nil {
		return "", toRuntimeError(logger, userID, err)
	}
	return encode(logger, rollResponse{Room: room, Value: res.Value, Result: res.Outcome})
}

func (h *handlers) moveToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, req, err := roomCall(ctx, payload)
	if err != nil {
		return "", err
	}
	room, res, err := h.mgr.MoveToken(ctx, req.Code, userID, req.TokenIndex)
	if err != nil {
		return "", toRuntimeError(logger, userID, err)
	}
	return encode(logger, moveResponse{Room: room, Move: res})
}

func (h *handlers) activeRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return "", err
	}
	room, err := h.mgr.GetMyActiveRoom(ctx, userID)
	if err != nil {
		return "", toRuntimeError(logger, userID, err)
	}
	return encode(logger, room)
}

func callerID(ctx context.Context) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("No user ID in context", codeUnauthenticated)
	}
	return userID, nil
}

func roomCall(ctx context.Context, payload string) (string, roomRequest, error) {
	var req roomRequest
	userID, err := callerID(ctx)
	if err != nil {
		return "", req, err
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", req, runtime.NewError("Invalid payload", codeInvalidArgument)
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return "", req, runtime.NewError("Room code required", codeInvalidArgument)
	}
	return userID, req, nil
}

// displayName falls back to the Nakama username when the payload has none.
func displayName(ctx context.Context, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	username, _ := ctx.Value(runtime.RUNTIME_CTX_USERNAME).(string)
	return username
}

func encode(logger runtime.Logger, v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to marshal response: %v", err)
		return "", runtime.NewError("Internal error", codeInternal)
	}
	return string(out), nil
}

func toRuntimeError(logger runtime.Logger, userID string, err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidArgument), errors.Is(err, session.ErrIllegalMove):
		return runtime.NewError(err.Error(), codeInvalidArgument)
	case errors.Is(err, session.ErrNotFound):
		return runtime.NewError(err.Error(), codeNotFound)
	case errors.Is(err, session.ErrNotYourTurn):
		return runtime.NewError(err.Error(), codePermissionDenied)
	case errors.Is(err, session.ErrRoomExpired), errors.Is(err, session.ErrInvalidState):
		return runtime.NewError(err.Error(), codeFailedPrecondition)
	case errors.Is(err, session.ErrRoomFull):
		return runtime.NewError(err.Error(), codeResourceExhausted)
	default:
		logger.WithField("user", userID).Error("Room call failed: %v", err)
		return runtime.NewError("Internal error", codeInternal)
	}
}
