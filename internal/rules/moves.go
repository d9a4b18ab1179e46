package rules

import "ludo/internal/board"

// ResolveSteps returns every cell a token of color passes through when it
// moves die pips from from, ending on the landing cell. An empty result
// means the move is illegal and the token stays put.
func ResolveSteps(color board.Color, from board.Cell, die int) []board.Cell {
	if die < 1 || die > 6 || !color.Valid() {
		return nil
	}
	lane := board.Lane(color)

	if from == board.Yard {
		if die != 6 {
			return nil
		}
		return []board.Cell{board.StartingCell(color)}
	}
	if from == lane[len(lane)-1] {
		return nil
	}

	if owner, ok := board.LaneColor(from); ok {
		if owner != color {
			return nil
		}
		return laneSteps(lane, board.LaneIndex(from)+1, die)
	}

	if !board.IsLoopCell(from) {
		return nil
	}
	toEntry := board.Distance(from, board.LaneEntryCell(color))
	if die <= toEntry {
		steps := make([]board.Cell, 0, die)
		cur := from
		for i := 0; i < die; i++ {
			cur = board.Next(cur)
			steps = append(steps, cur)
		}
		return steps
	}

	inLane := laneSteps(lane, 0, die-toEntry)
	if inLane == nil {
		return nil
	}
	steps := make([]board.Cell, 0, die)
	cur := from
	for i := 0; i < toEntry; i++ {
		cur = board.Next(cur)
		steps = append(steps, cur)
	}
	return append(steps, inLane...)
}

// laneSteps walks n cells inside lane starting at index first. Overshooting
// the terminal cell rejects the whole walk.
func laneSteps(lane [6]board.Cell, first, n int) []board.Cell {
	last := first + n - 1
	if last >= len(lane) {
		return nil
	}
	steps := make([]board.Cell, 0, n)
	for i := first; i <= last; i++ {
		steps = append(steps, lane[i])
	}
	return steps
}

// HasLegalMove reports whether any of p's tokens can move die pips.
func HasLegalMove(p Player, die int) bool {
	for _, tok := range p.Tokens {
		if len(ResolveSteps(p.Color, tok.Position, die)) > 0 {
			return true
		}
	}
	return false
}

// LegalTokens lists the token indexes of the current player that can use
// the rolled die.
func LegalTokens(s MatchState) []int {
	if s.DiceValue == 0 || s.Over() || len(s.Players) == 0 {
		return nil
	}
	p := s.Current()
	var out []int
	for i, tok := range p.Tokens {
		if len(ResolveSteps(p.Color, tok.Position, s.DiceValue)) > 0 {
			out = append(out, i)
		}
	}
	return out
}
