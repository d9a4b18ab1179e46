package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ludo/internal/board"
	"ludo/internal/dice"
	"ludo/internal/game"
	"ludo/internal/rules"
	"ludo/internal/storage"
)

var (
	ErrNotFound     = rules.ErrNotFound
	ErrNotYourTurn  = rules.ErrNotYourTurn
	ErrInvalidState = rules.ErrInvalidState
	ErrIllegalMove  = rules.ErrIllegalMove

	ErrRoomFull        = errors.New("room is full")
	ErrRoomExpired     = errors.New("room expired")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrNotHost          = fmt.Errorf("%w: only the host can start the game", ErrInvalidState)
	ErrNotEnoughPlayers = fmt.Errorf("%w: not enough players", ErrInvalidState)
)

const (
	// DefaultRoomTTL is how long a room may sit in waiting before it is abandoned.
	DefaultRoomTTL = 15 * time.Minute
	// DefaultRetention is how long retired rooms are kept before cleanup deletes them.
	DefaultRetention = 24 * time.Hour

	maxCodeAttempts = 32
)

// Options tunes a Manager. Zero values pick defaults.
type Options struct {
	Dice      rules.DiceSource
	RoomTTL   time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// Manager is the server-authoritative room service. Every call runs as one
// storage transaction.
type Manager struct {
	registry  *game.Registry
	store     *storage.Store
	hub       *Hub
	dice      rules.DiceSource
	ttl       time.Duration
	retention time.Duration
	now       func() time.Time
	newCode   func() string

	// seq orders snapshots. It advances inside write transactions, which
	// the store serializes, so it follows commit order.
	seq atomic.Uint64
}

// NewManager creates a room manager.
func NewManager(registry *game.Registry, store *storage.Store, opts Options) *Manager {
	m := &Manager{
		registry:  registry,
		store:     store,
		hub:       NewHub(),
		dice:      opts.Dice,
		ttl:       opts.RoomTTL,
		retention: opts.Retention,
		now:       opts.Now,
		newCode:   generateCode,
	}
	if m.dice == nil {
		m.dice = dice.NewUniform(nil)
	}
	if m.ttl <= 0 {
		m.ttl = DefaultRoomTTL
	}
	if m.retention <= 0 {
		m.retention = DefaultRetention
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Hub returns the snapshot hub clients subscribe to.
func (m *Manager) Hub() *Hub { return m.hub }

// Variants lists the registered variants.
func (m *Manager) Variants() []game.Info { return m.registry.List() }

// CreateRoomParams are the inputs of CreateRoom.
type CreateRoomParams struct {
	HostID          string
	Name            string
	Mode            string
	RequiredPlayers int
	Colors          []board.Color
	EntryFee        int64
}

// CreateRoom opens a waiting room with a fresh 6-digit code and seats the host.
func (m *Manager) CreateRoom(ctx context.Context, p CreateRoomParams) (*Room, error) {
	p.HostID = strings.TrimSpace(p.HostID)
	if p.HostID == "" {
		return nil, fmt.Errorf("%w: host id required", ErrInvalidArgument)
	}
	v, ok := m.registry.Get(p.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidArgument, p.Mode)
	}
	info := v.Info()
	if p.RequiredPlayers < info.MinPlayers || p.RequiredPlayers > info.MaxPlayers {
		return nil, fmt.Errorf("%w: required players must be between %d and %d",
			ErrInvalidArgument, info.MinPlayers, info.MaxPlayers)
	}
	colors := p.Colors
	if len(colors) == 0 {
		colors = defaultColors(p.RequiredPlayers)
	}
	if err := validateColors(colors, p.RequiredPlayers); err != nil {
		return nil, err
	}
	if p.EntryFee < 0 {
		return nil, fmt.Errorf("%w: negative entry fee", ErrInvalidArgument)
	}

	now := m.now()
	room := &Room{
		ID:              uuid.NewString(),
		HostID:          p.HostID,
		Status:          StatusWaiting,
		Mode:            rules.Mode(info.Name),
		RequiredPlayers: p.RequiredPlayers,
		MaxPlayers:      info.MaxPlayers,
		Colors:          colors,
		EntryFee:        p.EntryFee,
		CreatedAt:       now,
	}
	var snaps []Snapshot
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		code, err := m.uniqueCode(tx)
		if err != nil {
			return err
		}
		room.Code = code
		row, err := room.row()
		if err != nil {
			return err
		}
		if err := tx.InsertRoom(row); err != nil {
			return fmt.Errorf("persist room: %w", err)
		}
		err = tx.InsertMembership(storage.MembershipRow{
			RoomID:   room.ID,
			UserID:   p.HostID,
			Name:     p.Name,
			JoinedAt: now.UnixNano(),
		})
		if err != nil {
			return err
		}
		return m.stage(tx, room, &snaps)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("code", room.Code).Str("room", room.ID).Str("host", p.HostID).
		Str("mode", string(room.Mode)).Int("required", room.RequiredPlayers).Msg("room created")
	m.publish(snaps)
	return room, nil
}

func validateColors(colors []board.Color, required int) error {
	if len(colors) < required || len(colors) > len(board.Colors()) {
		return fmt.Errorf("%w: need between %d and %d colors, got %d",
			ErrInvalidArgument, required, len(board.Colors()), len(colors))
	}
	seen := make(map[board.Color]bool, len(colors))
	for _, c := range colors {
		if !c.Valid() {
			return fmt.Errorf("%w: invalid color %d", ErrInvalidArgument, int(c))
		}
		if seen[c] {
			return fmt.Errorf("%w: color %s listed twice", ErrInvalidArgument, c)
		}
		seen[c] = true
	}
	return nil
}

func (m *Manager) uniqueCode(tx *storage.Tx) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := m.newCode()
		inUse, err := tx.CodeInUse(code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}

// JoinRoom seats userID in the room. Joining a room the user already belongs
// to returns it unchanged, which is how clients reconnect.
func (m *Manager) JoinRoom(ctx context.Context, code, userID, name string) (*Room, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	var room *Room
	var expired, joined bool
	var snaps []Snapshot
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		r, err := m.loadRoom(tx, code)
		if err != nil {
			return err
		}
		room = r
		if r.Status.Retired() {
			return fmt.Errorf("%w: room %s is %s", ErrInvalidState, code, r.Status)
		}
		if m.expired(r) {
			expired = true
			if err := m.abandon(tx, r); err != nil {
				return err
			}
			return m.stage(tx, r, &snaps)
		}
		if _, err := tx.Membership(r.ID, userID); err == nil {
			return nil
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if r.Status != StatusWaiting {
			return fmt.Errorf("%w: room %s already started: %w", ErrInvalidState, code, ErrRoomFull)
		}
		n, err := tx.CountMemberships(r.ID)
		if err != nil {
			return err
		}
		if n >= r.RequiredPlayers {
			return ErrRoomFull
		}
		joined = true
		err = tx.InsertMembership(storage.MembershipRow{
			RoomID:   r.ID,
			UserID:   userID,
			Name:     name,
			JoinedAt: m.now().UnixNano(),
		})
		if err != nil {
			return err
		}
		return m.stage(tx, r, &snaps)
	})
	if err != nil {
		return nil, err
	}
	m.publish(snaps)
	if expired {
		m.logAbandoned(room)
		return nil, fmt.Errorf("%w: room %s", ErrRoomExpired, code)
	}
	if joined {
		log.Info().Str("code", code).Str("user", userID).Msg("player joined")
	}
	return room, nil
}

// StartGame deals colors in join order and creates the match. Only the host
// may start; starting a playing room again is a no-op.
func (m *Manager) StartGame(ctx context.Context, code, userID string) (*Room, error) {
	var room *Room
	var expired, started bool
	var snaps []Snapshot
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		r, err := m.loadRoom(tx, code)
		if err != nil {
			return err
		}
		room = r
		if r.HostID != userID {
			return ErrNotHost
		}
		switch {
		case r.Status == StatusPlaying:
			return nil
		case r.Status.Retired():
			return fmt.Errorf("%w: room %s is %s", ErrInvalidState, code, r.Status)
		case m.expired(r):
			expired = true
			if err := m.abandon(tx, r); err != nil {
				return err
			}
			return m.stage(tx, r, &snaps)
		}

		rows, err := tx.Memberships(r.ID)
		if err != nil {
			return err
		}
		if len(rows) != r.RequiredPlayers {
			return fmt.Errorf("%w: have %d of %d", ErrNotEnoughPlayers, len(rows), r.RequiredPlayers)
		}
		v, ok := m.registry.Get(string(r.Mode))
		if !ok {
			return fmt.Errorf("%w: unknown mode %q", ErrInvalidState, r.Mode)
		}
		seats := make([]rules.Seat, len(rows))
		for i, mem := range rows {
			seats[i] = rules.Seat{Color: r.Colors[i], UserID: mem.UserID, Name: mem.Name}
		}
		now := m.now()
		match, err := v.NewMatch(seats, now)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		r.Status = StatusPlaying
		r.StartedAt = &now
		r.Match = &match
		started = true
		if err := m.saveRoom(tx, r); err != nil {
			return err
		}
		return m.stage(tx, r, &snaps)
	})
	if err != nil {
		return nil, err
	}
	m.publish(snaps)
	if expired {
		m.logAbandoned(room)
		return nil, fmt.Errorf("%w: room %s", ErrRoomExpired, code)
	}
	if started {
		log.Info().Str("code", code).Str("room", room.ID).Int("players", len(room.Match.Players)).Msg("game started")
	}
	return room, nil
}

// RollDice draws a die for userID from server-held state.
func (m *Manager) RollDice(ctx context.Context, code, userID string) (*Room, rules.RollResult, error) {
	var res rules.RollResult
	room, err := m.mutateMatch(ctx, code, userID, func(s rules.MatchState, player int, now time.Time) (rules.MatchState, error) {
		next, r, err := rules.Roll(s, player, m.dice, now)
		res = r
		return next, err
	})
	if err != nil {
		return nil, rules.RollResult{}, err
	}
	log.Debug().Str("code", code).Str("user", userID).Int("value", res.Value).
		Str("outcome", string(res.Outcome)).Msg("dice rolled")
	return room, res, nil
}

// MoveToken moves one of userID's tokens by the die already on the table.
// The client only names the token; the path is derived here.
func (m *Manager) MoveToken(ctx context.Context, code, userID string, tokenIndex int) (*Room, rules.MoveResult, error) {
	var res rules.MoveResult
	room, err := m.mutateMatch(ctx, code, userID, func(s rules.MatchState, player int, now time.Time) (rules.MatchState, error) {
		next, r, err := rules.Move(s, player, tokenIndex, now)
		res = r
		return next, err
	})
	if err != nil {
		return nil, rules.MoveResult{}, err
	}
	ev := log.Debug()
	if res.Won {
		ev = log.Info()
	}
	ev.Str("code", code).Str("user", userID).Int("token", tokenIndex).
		Int("captures", len(res.Captures)).Bool("won", res.Won).Msg("token moved")
	return room, res, nil
}

type transition func(s rules.MatchState, player int, now time.Time) (rules.MatchState, error)

func (m *Manager) mutateMatch(ctx context.Context, code, userID string, fn transition) (*Room, error) {
	var room *Room
	var snaps []Snapshot
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		r, err := m.loadRoom(tx, code)
		if err != nil {
			return err
		}
		if r.Status != StatusPlaying || r.Match == nil {
			return fmt.Errorf("%w: room %s is %s", ErrInvalidState, code, r.Status)
		}
		player, ok := r.Match.PlayerIndex(userID)
		if !ok || player != r.Match.CurrentPlayerIndex {
			return ErrNotYourTurn
		}
		now := m.now()
		next, err := fn(*r.Match, player, now)
		if err != nil {
			return err
		}
		r.Match = &next
		if next.Over() {
			r.Status = StatusEnded
			r.EndedAt = &now
			if err := tx.DeleteMemberships(r.ID); err != nil {
				return err
			}
		}
		room = r
		if err := m.saveRoom(tx, r); err != nil {
			return err
		}
		return m.stage(tx, r, &snaps)
	})
	if err != nil {
		return nil, err
	}
	m.publish(snaps)
	return room, nil
}

// GetMyActiveRoom finds the newest waiting or playing room userID belongs to,
// so a disconnected client can resume.
func (m *Manager) GetMyActiveRoom(ctx context.Context, userID string) (*Room, error) {
	var found *Room
	var abandoned []*Room
	var snaps []Snapshot
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		rows, err := tx.MembershipsByUser(userID)
		if err != nil {
			return err
		}
		for _, mem := range rows {
			row, err := tx.RoomByID(mem.RoomID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			r, err := m.roomWithMatch(tx, row)
			if err != nil {
				return err
			}
			if r.Status.Retired() {
				continue
			}
			if m.expired(r) {
				if err := m.abandon(tx, r); err != nil {
					return err
				}
				if err := m.stage(tx, r, &snaps); err != nil {
					return err
				}
				abandoned = append(abandoned, r)
				continue
			}
			found = r
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publish(snaps)
	for _, r := range abandoned {
		m.logAbandoned(r)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no active room for %s", ErrNotFound, userID)
	}
	return found, nil
}

// AbandonRoomIfExpired retires a waiting room older than the TTL.
func (m *Manager) AbandonRoomIfExpired(ctx context.Context, code string) (bool, error) {
	var room *Room
	var snaps []Snapshot
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		r, err := m.loadRoom(tx, code)
		if err != nil {
			return err
		}
		if !m.expired(r) {
			return nil
		}
		room = r
		if err := m.abandon(tx, r); err != nil {
			return err
		}
		return m.stage(tx, r, &snaps)
	})
	if err != nil || room == nil {
		return false, err
	}
	m.publish(snaps)
	m.logAbandoned(room)
	return true, nil
}

// GetRoom returns the read model of a room.
func (m *Manager) GetRoom(ctx context.Context, code string) (Snapshot, error) {
	var snap Snapshot
	err := m.store.View(ctx, func(tx *storage.Tx) error {
		r, err := m.loadRoom(tx, code)
		if err != nil {
			return err
		}
		snap, err = m.snapshot(tx, r)
		snap.Seq = m.seq.Load()
		return err
	})
	return snap, err
}

func (m *Manager) snapshot(tx *storage.Tx, r *Room) (Snapshot, error) {
	rows, err := tx.Memberships(r.ID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Room: *r, Members: make([]Membership, 0, len(rows))}
	for _, row := range rows {
		snap.Members = append(snap.Members, membershipFromRow(row))
	}
	if r.Match != nil {
		snap.LegalTokens = rules.LegalTokens(*r.Match)
	}
	return snap, nil
}

// CleanupLoop abandons expired rooms and deletes old retired ones until ctx ends.
func (m *Manager) CleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.cleanup(ctx); err != nil {
				log.Warn().Err(err).Msg("room cleanup failed")
			}
		}
	}
}

func (m *Manager) cleanup(ctx context.Context) error {
	var abandoned []*Room
	var snaps []Snapshot
	var purged int
	err := m.store.Update(ctx, func(tx *storage.Tx) error {
		rows, err := tx.ListRooms("")
		if err != nil {
			return err
		}
		now := m.now()
		for i := range rows {
			row := &rows[i]
			r, err := roomFromRow(row)
			if err != nil {
				return err
			}
			if r.Status.Retired() {
				retiredAt := r.CreatedAt
				if r.EndedAt != nil {
					retiredAt = *r.EndedAt
				}
				if now.Sub(retiredAt) > m.retention {
					if err := tx.DeleteRoom(r.ID); err != nil {
						return err
					}
					purged++
				}
				continue
			}
			if m.expired(r) {
				if err := m.abandon(tx, r); err != nil {
					return err
				}
				if err := m.stage(tx, r, &snaps); err != nil {
					return err
				}
				abandoned = append(abandoned, r)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.publish(snaps)
	for _, r := range abandoned {
		m.logAbandoned(r)
	}
	if purged > 0 {
		log.Info().Int("rooms", purged).Msg("purged retired rooms")
	}
	return nil
}

func (m *Manager) expired(r *Room) bool {
	return r.Status == StatusWaiting && m.now().Sub(r.CreatedAt) > m.ttl
}

func (m *Manager) abandon(tx *storage.Tx, r *Room) error {
	now := m.now()
	r.Status = StatusAbandoned
	r.EndedAt = &now
	row, err := r.row()
	if err != nil {
		return err
	}
	return tx.UpdateRoom(row)
}

func (m *Manager) logAbandoned(r *Room) {
	log.Info().Str("code", r.Code).Str("room", r.ID).
		Str("created", humanize.RelTime(r.CreatedAt, m.now(), "ago", "from now")).
		Msg("room abandoned")
}

func (m *Manager) loadRoom(tx *storage.Tx, code string) (*Room, error) {
	row, err := tx.RoomByCode(code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return m.roomWithMatch(tx, row)
}

func (m *Manager) roomWithMatch(tx *storage.Tx, row *storage.RoomRow) (*Room, error) {
	r, err := roomFromRow(row)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusWaiting {
		return r, nil
	}
	stateJSON, err := tx.MatchState(r.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return r, nil
	}
	if err != nil {
		return nil, err
	}
	var match rules.MatchState
	if err := json.Unmarshal([]byte(stateJSON), &match); err != nil {
		return nil, fmt.Errorf("unmarshal match state: %w", err)
	}
	r.Match = &match
	return r, nil
}

func (m *Manager) saveRoom(tx *storage.Tx, r *Room) error {
	row, err := r.row()
	if err != nil {
		return err
	}
	if err := tx.UpdateRoom(row); err != nil {
		return err
	}
	if r.Match == nil {
		return nil
	}
	data, err := json.Marshal(r.Match)
	if err != nil {
		return fmt.Errorf("marshal match state: %w", err)
	}
	return tx.SaveMatchState(r.ID, string(data), r.Match.UpdatedAt.UnixNano())
}

// stage numbers the committed view of r and queues it for broadcast. It runs
// inside the write transaction; the queue is published only after commit.
func (m *Manager) stage(tx *storage.Tx, r *Room, out *[]Snapshot) error {
	seq := m.seq.Add(1)
	if m.hub.Count(r.Code) == 0 {
		return nil
	}
	snap, err := m.snapshot(tx, r)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}
	snap.Seq = seq
	*out = append(*out, snap)
	return nil
}

func (m *Manager) publish(snaps []Snapshot) {
	for _, snap := range snaps {
		m.hub.Broadcast(snap.Room.Code, snap)
	}
}

func generateCode() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("%06d", binary.BigEndian.Uint32(b)%1000000)
}
