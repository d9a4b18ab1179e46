// Package local runs a pass-and-play match on one device. Whoever holds the
// device acts for the current player, so calls carry no user identity.
package local

import (
	"fmt"
	"sync"
	"time"

	"ludo/internal/board"
	"ludo/internal/rules"
)

// Match is an in-process match driven by the assist die.
type Match struct {
	mu    sync.Mutex
	state rules.MatchState
	dice  rules.DiceSource
	now   func() time.Time
}

// New seats the given colors in order. Player names default to the color.
func New(mode rules.Mode, colors []board.Color, src rules.DiceSource) (*Match, error) {
	if src == nil {
		return nil, fmt.Errorf("dice source required")
	}
	seats := make([]rules.Seat, len(colors))
	for i, c := range colors {
		seats[i] = rules.Seat{Color: c, Name: c.String()}
	}
	s, err := rules.NewMatch(mode, seats, time.Now())
	if err != nil {
		return nil, err
	}
	return &Match{state: s, dice: src, now: time.Now}, nil
}

// Resume continues from a previously saved state.
func Resume(s rules.MatchState, src rules.DiceSource) (*Match, error) {
	if src == nil {
		return nil, fmt.Errorf("dice source required")
	}
	return &Match{state: s.Clone(), dice: src, now: time.Now}, nil
}

// State returns a copy of the current state.
func (m *Match) State() rules.MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Roll draws for the current player.
func (m *Match) Roll() (rules.RollResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, res, err := rules.Roll(m.state, m.state.CurrentPlayerIndex, m.dice, m.now())
	if err != nil {
		return rules.RollResult{}, err
	}
	m.state = next
	return res, nil
}

// Move moves one of the current player's tokens.
func (m *Match) Move(tokenIndex int) (rules.MoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, res, err := rules.Move(m.state, m.state.CurrentPlayerIndex, tokenIndex, m.now())
	if err != nil {
		return rules.MoveResult{}, err
	}
	m.state = next
	return res, nil
}

// LegalTokens lists tokens the current player may move with the rolled die.
func (m *Match) LegalTokens() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rules.LegalTokens(m.state)
}
