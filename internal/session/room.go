package session

import (
	"encoding/json"
	"fmt"
	"time"

	"ludo/internal/board"
	"ludo/internal/rules"
	"ludo/internal/storage"
)

// Status represents the room lifecycle.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusAbandoned Status = "abandoned"
	StatusEnded     Status = "ended"
)

// Retired reports whether the room no longer accepts any call.
func (s Status) Retired() bool {
	return s == StatusAbandoned || s == StatusEnded
}

// Room is one online match lobby and, once started, its match.
type Room struct {
	ID              string            `json:"id"`
	Code            string            `json:"code"`
	HostID          string            `json:"hostId"`
	Status          Status            `json:"status"`
	Mode            rules.Mode        `json:"mode"`
	RequiredPlayers int               `json:"requiredPlayers"`
	MaxPlayers      int               `json:"maxPlayers"`
	Colors          []board.Color     `json:"colors"`
	EntryFee        int64             `json:"entryFee"`
	CreatedAt       time.Time         `json:"createdAt"`
	StartedAt       *time.Time        `json:"startedAt,omitempty"`
	EndedAt         *time.Time        `json:"endedAt,omitempty"`
	Match           *rules.MatchState `json:"match,omitempty"`
}

// Membership records a user seated in a room.
type Membership struct {
	RoomID   string    `json:"roomId"`
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Snapshot is the read model pushed to clients.
type Snapshot struct {
	Room        Room         `json:"room"`
	Members     []Membership `json:"members"`
	LegalTokens []int        `json:"legalTokens,omitempty"`
	// Seq increases with every committed room change.
	Seq uint64 `json:"seq"`
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func optionalTime(n int64) *time.Time {
	if n == 0 {
		return nil
	}
	t := fromNanos(n)
	return &t
}

func nanos(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

func roomFromRow(row *storage.RoomRow) (*Room, error) {
	r := &Room{
		ID:              row.ID,
		Code:            row.Code,
		HostID:          row.HostID,
		Status:          Status(row.Status),
		Mode:            rules.Mode(row.Mode),
		RequiredPlayers: row.RequiredPlayers,
		MaxPlayers:      row.MaxPlayers,
		EntryFee:        row.EntryFee,
		CreatedAt:       fromNanos(row.CreatedAt),
		StartedAt:       optionalTime(row.StartedAt),
		EndedAt:         optionalTime(row.EndedAt),
	}
	if err := json.Unmarshal([]byte(row.ColorsJSON), &r.Colors); err != nil {
		return nil, fmt.Errorf("decode colors of room %s: %w", row.ID, err)
	}
	return r, nil
}

func (r *Room) row() (storage.RoomRow, error) {
	colors, err := json.Marshal(r.Colors)
	if err != nil {
		return storage.RoomRow{}, fmt.Errorf("encode colors: %w", err)
	}
	return storage.RoomRow{
		ID:              r.ID,
		Code:            r.Code,
		HostID:          r.HostID,
		Status:          string(r.Status),
		Mode:            string(r.Mode),
		RequiredPlayers: r.RequiredPlayers,
		MaxPlayers:      r.MaxPlayers,
		ColorsJSON:      string(colors),
		EntryFee:        r.EntryFee,
		CreatedAt:       r.CreatedAt.UnixNano(),
		StartedAt:       nanos(r.StartedAt),
		EndedAt:         nanos(r.EndedAt),
	}, nil
}

func membershipFromRow(row storage.MembershipRow) Membership {
	return Membership{
		RoomID:   row.RoomID,
		UserID:   row.UserID,
		Name:     row.Name,
		JoinedAt: fromNanos(row.JoinedAt),
	}
}

// defaultColors seats players on opposite corners where possible.
func defaultColors(n int) []board.Color {
	switch n {
	case 2:
		return []board.Color{board.Red, board.Yellow}
	case 3:
		return []board.Color{board.Red, board.Green, board.Yellow}
	default:
		return board.Colors()
	}
}
