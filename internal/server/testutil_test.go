package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"ludo/internal/game"
	"ludo/internal/rules"
	"ludo/internal/session"
	"ludo/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts  *httptest.Server
	mgr *session.Manager
	die *atomic.Int32
}

// setupTestEnv serves a manager whose die always shows env.die.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	die := new(atomic.Int32)
	die.Store(6)
	mgr := session.NewManager(game.DefaultRegistry(), store, session.Options{
		Dice: rules.DiceFunc(func(rules.MatchState) int { return int(die.Load()) }),
	})
	ts := httptest.NewServer(New(mgr))
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr, die: die}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createRoomViaAPI(t *testing.T, ts *httptest.Server, hostID string, required int) string {
	t.Helper()
	body := fmt.Sprintf(`{"hostId":%q,"name":%q,"mode":"classic","requiredPlayers":%d}`, hostID, hostID, required)
	resp := postJSON(t, ts.URL+"/api/rooms", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result.Code
}

func userAction(t *testing.T, ts *httptest.Server, code, action, userID string) *http.Response {
	t.Helper()
	return postJSON(t, ts.URL+"/api/rooms/"+code+"/"+action, fmt.Sprintf(`{"userId":%q}`, userID))
}

// startedRoom creates a two player room with alice as host and starts it.
func startedRoom(t *testing.T, env *testEnv) string {
	t.Helper()
	code := createRoomViaAPI(t, env.ts, "alice", 2)
	if resp := userAction(t, env.ts, code, "join", "bob"); resp.StatusCode != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", resp.StatusCode)
	}
	if resp := userAction(t, env.ts, code, "start", "alice"); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", resp.StatusCode)
	}
	return code
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/rooms/" + code + "/ws"
}

// wsConnect dials a WebSocket, sends a join message, and returns the connection.
// The caller is responsible for closing the connection.
func wsConnect(t *testing.T, ts *httptest.Server, code, userID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	wsSend(ctx, t, conn, "join", joinPayload{UserID: userID, Name: userID})
	return conn
}

// wsSend marshals and writes a typed message, calling t.Fatal on error.
func wsSend(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		p, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = p
	}
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: raw})
	if err != nil {
		t.Fatalf("marshal ws message: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}
}

// wsRead reads and unmarshals a WebSocket message, calling t.Fatal on error.
func wsRead(ctx context.Context, t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v", err)
	}
	return msg
}

// readState reads a WebSocket message and expects it to be a "state" message.
func readState(ctx context.Context, t *testing.T, conn *websocket.Conn) session.Snapshot {
	t.Helper()
	msg := wsRead(ctx, t, conn)
	if msg.Type != "state" {
		t.Fatalf("expected state message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var snap session.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		t.Fatalf("unmarshal state payload: %v", err)
	}
	return snap
}

// readStateUntil skips state messages until cond holds.
func readStateUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, cond func(session.Snapshot) bool) session.Snapshot {
	t.Helper()
	for {
		snap := readState(ctx, t, conn)
		if cond(snap) {
			return snap
		}
	}
}

// readError reads a WebSocket message and expects it to be an "error" message.
func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) errorPayload {
	t.Helper()
	msg := wsRead(ctx, t, conn)
	if msg.Type != "error" {
		t.Fatalf("expected error message, got %q: %s", msg.Type, string(msg.Payload))
	}
	var ep errorPayload
	if err := json.Unmarshal(msg.Payload, &ep); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	return ep
}

func hasMember(snap session.Snapshot, userID string) bool {
	for _, m := range snap.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
