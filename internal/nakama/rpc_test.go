package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/heroiclabs/nakama-common/runtime"

	"ludo/internal/game"
	"ludo/internal/rules"
	"ludo/internal/session"
	"ludo/internal/storage"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// fakeInitializer records registered RPCs. Any other call panics.
type fakeInitializer struct {
	runtime.Initializer
	rpcs map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error)
}

func (f *fakeInitializer) RegisterRpc(id string, fn func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error)) error {
	if _, dup := f.rpcs[id]; dup {
		return errors.New("duplicate rpc " + id)
	}
	f.rpcs[id] = fn
	return nil
}

type rpcEnv struct {
	init *fakeInitializer
}

func setupRPCs(t *testing.T) *rpcEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mgr := session.NewManager(game.DefaultRegistry(), store, session.Options{
		Dice: rules.DiceFunc(func(rules.MatchState) int { return 6 }),
	})
	fi := &fakeInitializer{rpcs: make(map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error))}
	if err := RegisterRPCs(fi, mgr); err != nil {
		t.Fatalf("register: %v", err)
	}
	return &rpcEnv{init: fi}
}

func userCtx(userID string) context.Context {
	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, userID)
	return context.WithValue(ctx, runtime.RUNTIME_CTX_USERNAME, userID+"_name")
}

func (e *rpcEnv) call(t *testing.T, id, userID, payload string) (string, error) {
	t.Helper()
	fn, ok := e.init.rpcs[id]
	if !ok {
		t.Fatalf("rpc %s not registered", id)
	}
	return fn(userCtx(userID), noopLogger{}, nil, nil, payload)
}

func (e *rpcEnv) mustCall(t *testing.T, id, userID, payload string, out any) {
	t.Helper()
	raw, err := e.call(t, id, userID, payload)
	if err != nil {
		t.Fatalf("%s: %v", id, err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			t.Fatalf("%s: unmarshal %q: %v", id, raw, err)
		}
	}
}

func assertCode(t *testing.T, err error, want int) {
	t.Helper()
	var rtErr *runtime.Error
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected runtime error with code %d, got %v", want, err)
	}
	if rtErr.Code != want {
		t.Fatalf("expected code %d, got %d (%s)", want, rtErr.Code, rtErr.Message)
	}
}

func TestRegisterRPCs(t *testing.T) {
	env := setupRPCs(t)
	for _, id := range []string{RpcCreateRoom, RpcJoinRoom, RpcStartGame, RpcRollDice, RpcMoveToken, RpcActiveRoom} {
		if _, ok := env.init.rpcs[id]; !ok {
			t.Errorf("expected %s registered", id)
		}
	}
}

func TestRoomFlowOverRPC(t *testing.T) {
	env := setupRPCs(t)

	var created createRoomResponse
	env.mustCall(t, RpcCreateRoom, "alice", `{"mode":"quick","requiredPlayers":2}`, &created)
	if created.Code == "" || created.RoomID == "" {
		t.Fatalf("unexpected create response %+v", created)
	}
	roomPayload := `{"code":"` + created.Code + `"}`

	var joined session.Room
	env.mustCall(t, RpcJoinRoom, "bob", roomPayload, &joined)
	if joined.ID != created.RoomID {
		t.Fatalf("expected room %s, got %s", created.RoomID, joined.ID)
	}

	var started session.Room
	env.mustCall(t, RpcStartGame, "alice", roomPayload, &started)
	if started.Status != session.StatusPlaying || started.Match.Players[1].Name != "bob_name" {
		t.Fatalf("unexpected started room %+v", started)
	}

	var rolled rollResponse
	env.mustCall(t, RpcRollDice, "alice", roomPayload, &rolled)
	if rolled.Value != 6 || rolled.Result != rules.RollReady {
		t.Fatalf("unexpected roll %+v", rolled)
	}

	var moved moveResponse
	env.mustCall(t, RpcMoveToken, "alice", `{"code":"`+created.Code+`","tokenIndex":1}`, &moved)
	if !moved.Move.ExtraTurn || moved.Move.TokenIndex != 1 {
		t.Fatalf("unexpected move %+v", moved.Move)
	}

	var active session.Room
	env.mustCall(t, RpcActiveRoom, "bob", "", &active)
	if active.Code != created.Code {
		t.Fatalf("expected active room %s, got %s", created.Code, active.Code)
	}
}

func TestRPCErrors(t *testing.T) {
	env := setupRPCs(t)

	var created createRoomResponse
	env.mustCall(t, RpcCreateRoom, "alice", `{"mode":"classic","requiredPlayers":2}`, &created)
	roomPayload := `{"code":"` + created.Code + `"}`

	_, err := env.call(t, RpcCreateRoom, "alice", "not json")
	assertCode(t, err, codeInvalidArgument)

	_, err = env.call(t, RpcCreateRoom, "alice", `{"mode":"blitz","requiredPlayers":2}`)
	assertCode(t, err, codeInvalidArgument)

	_, err = env.call(t, RpcJoinRoom, "bob", `{"code":""}`)
	assertCode(t, err, codeInvalidArgument)

	_, err = env.call(t, RpcJoinRoom, "bob", `{"code":"000000"}`)
	assertCode(t, err, codeNotFound)

	_, err = env.call(t, RpcStartGame, "alice", roomPayload)
	assertCode(t, err, codeFailedPrecondition)

	env.mustCall(t, RpcJoinRoom, "bob", roomPayload, nil)
	_, err = env.call(t, RpcJoinRoom, "carol", roomPayload)
	assertCode(t, err, codeResourceExhausted)

	env.mustCall(t, RpcStartGame, "alice", roomPayload, nil)
	_, err = env.call(t, RpcJoinRoom, "dave", roomPayload)
	assertCode(t, err, codeFailedPrecondition)

	_, err = env.call(t, RpcRollDice, "bob", roomPayload)
	assertCode(t, err, codePermissionDenied)

	_, err = env.call(t, RpcActiveRoom, "carol", "")
	assertCode(t, err, codeNotFound)

	fn := env.init.rpcs[RpcActiveRoom]
	_, err = fn(context.Background(), noopLogger{}, nil, nil, "")
	assertCode(t, err, codeUnauthenticated)
}
