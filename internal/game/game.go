package game

import (
	"time"

	"ludo/internal/board"
	"ludo/internal/rules"
)

// Info describes a variant for the lobby.
type Info struct {
	Name         string `json:"name"`
	MinPlayers   int    `json:"minPlayers"`
	MaxPlayers   int    `json:"maxPlayers"`
	FinishTarget int    `json:"finishTarget"`
}

// Variant is one rule set rooms can be created with.
type Variant interface {
	Info() Info
	NewMatch(seats []rules.Seat, now time.Time) (rules.MatchState, error)
}

// Classic needs all four tokens home.
type Classic struct{}

func (Classic) Info() Info { return infoFor(rules.ModeClassic) }

func (Classic) NewMatch(seats []rules.Seat, now time.Time) (rules.MatchState, error) {
	return rules.NewMatch(rules.ModeClassic, seats, now)
}

// Quick ends as soon as a player brings two tokens home.
type Quick struct{}

func (Quick) Info() Info { return infoFor(rules.ModeQuick) }

func (Quick) NewMatch(seats []rules.Seat, now time.Time) (rules.MatchState, error) {
	return rules.NewMatch(rules.ModeQuick, seats, now)
}

func infoFor(m rules.Mode) Info {
	return Info{
		Name:         string(m),
		MinPlayers:   2,
		MaxPlayers:   len(board.Colors()),
		FinishTarget: m.FinishTarget(),
	}
}

// DefaultRegistry returns a registry with both built-in variants.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Classic{})
	r.Register(Quick{})
	return r
}
