// Package nakama exposes the room service as Nakama runtime RPCs.
package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"ludo/internal/game"
	"ludo/internal/session"
	"ludo/internal/storage"
)

const (
	defaultDBPath          = "ludo.db"
	defaultCleanupInterval = time.Minute
)

// InitModule opens the room store named by the runtime env and registers the RPCs.
// Recognised env keys: ludo_db_path, ludo_room_ttl_sec, ludo_cleanup_sec.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	path := defaultDBPath
	if p := env["ludo_db_path"]; p != "" {
		path = p
	}
	store, err := storage.New(path)
	if err != nil {
		return fmt.Errorf("open room store: %w", err)
	}

	opts := session.Options{}
	if ttl, ok := envSeconds(env, "ludo_room_ttl_sec"); ok {
		opts.RoomTTL = ttl
	}
	mgr := session.NewManager(game.DefaultRegistry(), store, opts)
	if err := RegisterRPCs(initializer, mgr); err != nil {
		store.Close()
		return err
	}

	interval := defaultCleanupInterval
	if d, ok := envSeconds(env, "ludo_cleanup_sec"); ok {
		interval = d
	}
	go mgr.CleanupLoop(context.Background(), interval)

	logger.Info("Ludo Go module loaded (store %s).", path)
	return nil
}

func envSeconds(env map[string]string, key string) (time.Duration, bool) {
	n, err := strconv.Atoi(env[key])
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
