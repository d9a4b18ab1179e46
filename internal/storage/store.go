package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// RoomRow represents a room in the database. Times are Unix nanoseconds;
// zero means unset.
type RoomRow struct {
	ID              string
	Code            string
	HostID          string
	Status          string // "waiting", "playing", "abandoned", "ended"
	Mode            string
	RequiredPlayers int
	MaxPlayers      int
	ColorsJSON      string
	EntryFee        int64
	CreatedAt       int64
	StartedAt       int64
	EndedAt         int64
}

// MembershipRow represents one user seated in a room.
type MembershipRow struct {
	RoomID   string
	UserID   string
	Name     string
	JoinedAt int64
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: transactions serialize and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id               TEXT PRIMARY KEY,
			code             TEXT NOT NULL,
			host_id          TEXT NOT NULL,
			status           TEXT NOT NULL DEFAULT 'waiting',
			mode             TEXT NOT NULL,
			required_players INTEGER NOT NULL,
			max_players      INTEGER NOT NULL,
			colors_json      TEXT NOT NULL,
			entry_fee        INTEGER NOT NULL DEFAULT 0,
			created_at       INTEGER NOT NULL,
			started_at       INTEGER NOT NULL DEFAULT 0,
			ended_at         INTEGER NOT NULL DEFAULT 0
		);
		CREATE UNIQUE INDEX IF NOT EXISTS rooms_live_code
			ON rooms(code) WHERE status IN ('waiting', 'playing');
		CREATE INDEX IF NOT EXISTS rooms_status ON rooms(status);
		CREATE TABLE IF NOT EXISTS memberships (
			room_id   TEXT NOT NULL REFERENCES rooms(id),
			user_id   TEXT NOT NULL,
			name      TEXT NOT NULL,
			joined_at INTEGER NOT NULL,
			PRIMARY KEY (room_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS memberships_user ON memberships(user_id);
		CREATE TABLE IF NOT EXISTS match_state (
			room_id    TEXT PRIMARY KEY REFERENCES rooms(id),
			state_json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	return err
}

// Update runs fn inside a single read-write transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View runs fn inside a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()
	return fn(&Tx{tx: sqlTx})
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
