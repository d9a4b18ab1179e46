package rules

import (
	"fmt"
	"time"

	"ludo/internal/board"
)

// maxSixStreak is the number of consecutive sixes that forfeits the turn.
const maxSixStreak = 3

// DiceSource draws a die value for the current player of s.
type DiceSource interface {
	Roll(s MatchState) int
}

// DiceFunc adapts a function to DiceSource.
type DiceFunc func(s MatchState) int

func (f DiceFunc) Roll(s MatchState) int { return f(s) }

// RollOutcome describes what happened to a drawn die.
type RollOutcome string

const (
	// RollReady leaves the value on the table for a move.
	RollReady RollOutcome = "ready"
	// RollForcedPass discards a third consecutive six and passes the turn.
	RollForcedPass RollOutcome = "forced_pass"
	// RollAutoPass discards a value no token can use and passes the turn.
	RollAutoPass RollOutcome = "auto_pass"
)

// RollResult reports a roll.
type RollResult struct {
	Value   int         `json:"value"`
	Outcome RollOutcome `json:"outcome"`
}

// MoveResult reports a move.
type MoveResult struct {
	TokenIndex int          `json:"tokenIndex"`
	Path       []board.Cell `json:"path"`
	Captures   []Capture    `json:"captures,omitempty"`
	ExtraTurn  bool         `json:"extraTurn"`
	Won        bool         `json:"won"`
}

func checkTurn(s MatchState, player int) error {
	if s.Over() {
		return fmt.Errorf("%w: match already won by %s", ErrInvalidState, s.WinnerID)
	}
	if len(s.Players) == 0 {
		return fmt.Errorf("%w: no players seated", ErrInvalidState)
	}
	if player != s.CurrentPlayerIndex {
		return ErrNotYourTurn
	}
	return nil
}

// Roll draws a die for player. On error s is returned unchanged.
func Roll(s MatchState, player int, src DiceSource, now time.Time) (MatchState, RollResult, error) {
	if err := checkTurn(s, player); err != nil {
		return s, RollResult{}, err
	}
	if s.DiceValue != 0 {
		return s, RollResult{}, fmt.Errorf("%w: dice already rolled", ErrInvalidState)
	}

	die := src.Roll(s)
	if die < 1 || die > 6 {
		return s, RollResult{}, fmt.Errorf("%w: dice source returned %d", ErrInvalidState, die)
	}

	next := s.Clone()
	next.UpdatedAt = now
	if die == 6 {
		next.SixStreak++
	} else {
		next.SixStreak = 0
	}

	if next.SixStreak >= maxSixStreak {
		next.advance()
		return next, RollResult{Value: die, Outcome: RollForcedPass}, nil
	}
	if !HasLegalMove(next.Current(), die) {
		next.advance()
		return next, RollResult{Value: die, Outcome: RollAutoPass}, nil
	}
	next.DiceValue = die
	return next, RollResult{Value: die, Outcome: RollReady}, nil
}

// Move advances token tokenIndex of player by the rolled value. On error s is
// returned unchanged.
func Move(s MatchState, player, tokenIndex int, now time.Time) (MatchState, MoveResult, error) {
	if err := checkTurn(s, player); err != nil {
		return s, MoveResult{}, err
	}
	if s.DiceValue == 0 {
		return s, MoveResult{}, fmt.Errorf("%w: roll before moving", ErrInvalidState)
	}
	if tokenIndex < 0 || tokenIndex >= TokensPerPlayer {
		return s, MoveResult{}, fmt.Errorf("%w: token %d", ErrNotFound, tokenIndex)
	}

	mover := s.Players[player]
	path := ResolveSteps(mover.Color, mover.Tokens[tokenIndex].Position, s.DiceValue)
	if len(path) == 0 {
		return s, MoveResult{}, fmt.Errorf("%w: token %d cannot move %d", ErrIllegalMove, tokenIndex, s.DiceValue)
	}

	next := s.Clone()
	next.UpdatedAt = now
	landing := path[len(path)-1]
	next.Players[player].Tokens[tokenIndex].Position = landing

	captures := ResolveCaptures(next.Players, player, landing)
	for _, c := range captures {
		next.Players[c.PlayerIndex].Tokens[c.TokenIndex].Position = board.Yard
		next.Players[player].KillCount++
	}
	if len(captures) > 0 {
		next.LastCaptureKey = fmt.Sprintf("%d:%d:%d", player, landing, now.UnixNano())
	}

	res := MoveResult{TokenIndex: tokenIndex, Path: path, Captures: captures}
	if next.Players[player].Finished() >= next.Mode.FinishTarget() {
		next.WinnerID = next.Players[player].ID()
		next.DiceValue = 0
		next.SixStreak = 0
		res.Won = true
		return next, res, nil
	}

	if s.DiceValue == 6 || len(captures) > 0 {
		next.DiceValue = 0
		res.ExtraTurn = true
		return next, res, nil
	}
	next.advance()
	return next, res, nil
}
