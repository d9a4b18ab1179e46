package rules

import (
	"errors"
	"fmt"
	"time"

	"ludo/internal/board"
)

// TokensPerPlayer is the number of tokens each seat races home.
const TokensPerPlayer = 4

var (
	ErrNotFound     = errors.New("not found")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrInvalidState = errors.New("invalid state")
	ErrIllegalMove  = errors.New("illegal move")
)

// Mode selects how many finished tokens win the match.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeQuick   Mode = "quick"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeClassic || m == ModeQuick
}

// FinishTarget is the number of tokens a player must bring to the terminal cell.
func (m Mode) FinishTarget() int {
	if m == ModeQuick {
		return 2
	}
	return TokensPerPlayer
}

// Token is one racing piece.
type Token struct {
	Color    board.Color `json:"color"`
	Position board.Cell  `json:"position"`
}

// Player is a seated color and its tokens.
type Player struct {
	Color     board.Color            `json:"color"`
	Tokens    [TokensPerPlayer]Token `json:"tokens"`
	KillCount int                    `json:"killCount"`
	UserID    string                 `json:"userId,omitempty"`
	Name      string                 `json:"name,omitempty"`
}

// ID identifies the player in WinnerID: the user id when seated online,
// otherwise the color name.
func (p Player) ID() string {
	if p.UserID != "" {
		return p.UserID
	}
	return p.Color.String()
}

// Finished counts tokens sitting on the player's terminal cell.
func (p Player) Finished() int {
	n := 0
	term := board.Terminal(p.Color)
	for _, tok := range p.Tokens {
		if tok.Position == term {
			n++
		}
	}
	return n
}

// Seat describes one participant when a match is created.
type Seat struct {
	Color  board.Color
	UserID string
	Name   string
}

// MatchState is the whole turn state of one match. Transitions never mutate
// their input; they return a new value.
type MatchState struct {
	Mode               Mode      `json:"mode"`
	Players            []Player  `json:"players"`
	CurrentPlayerIndex int       `json:"currentPlayerIndex"`
	DiceValue          int       `json:"diceValue"`
	SixStreak          int       `json:"sixStreak"`
	WinnerID           string    `json:"winnerId,omitempty"`
	LastCaptureKey     string    `json:"lastCaptureKey,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// NewMatch seats the given players with every token in the yard.
func NewMatch(mode Mode, seats []Seat, now time.Time) (MatchState, error) {
	if !mode.Valid() {
		return MatchState{}, fmt.Errorf("unknown mode %q", mode)
	}
	if len(seats) < 2 || len(seats) > len(board.Colors()) {
		return MatchState{}, fmt.Errorf("need 2 to 4 players, have %d", len(seats))
	}
	used := make(map[board.Color]bool, len(seats))
	players := make([]Player, 0, len(seats))
	for _, s := range seats {
		if !s.Color.Valid() {
			return MatchState{}, fmt.Errorf("invalid color %d", int(s.Color))
		}
		if used[s.Color] {
			return MatchState{}, fmt.Errorf("color %s assigned twice", s.Color)
		}
		used[s.Color] = true
		p := Player{Color: s.Color, UserID: s.UserID, Name: s.Name}
		for i := range p.Tokens {
			p.Tokens[i] = Token{Color: s.Color, Position: board.Yard}
		}
		players = append(players, p)
	}
	return MatchState{
		Mode:      mode,
		Players:   players,
		UpdatedAt: now,
	}, nil
}

// Clone returns a deep copy of s.
func (s MatchState) Clone() MatchState {
	c := s
	c.Players = make([]Player, len(s.Players))
	copy(c.Players, s.Players)
	return c
}

// Over reports whether a winner has been decided.
func (s MatchState) Over() bool {
	return s.WinnerID != ""
}

// Winner returns the index of the winning player.
func (s MatchState) Winner() (int, bool) {
	if s.WinnerID == "" {
		return -1, false
	}
	for i, p := range s.Players {
		if p.ID() == s.WinnerID {
			return i, true
		}
	}
	return -1, false
}

// Current returns the player whose turn it is.
func (s MatchState) Current() Player {
	return s.Players[s.CurrentPlayerIndex]
}

// PlayerIndex finds the seat of an online user.
func (s MatchState) PlayerIndex(userID string) (int, bool) {
	for i, p := range s.Players {
		if p.UserID != "" && p.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

func (s *MatchState) advance() {
	s.CurrentPlayerIndex = (s.CurrentPlayerIndex + 1) % len(s.Players)
	s.DiceValue = 0
	s.SixStreak = 0
}
