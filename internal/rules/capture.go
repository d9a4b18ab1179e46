package rules

import "ludo/internal/board"

// Capture names a token sent back to the yard.
type Capture struct {
	PlayerIndex int `json:"playerIndex"`
	TokenIndex  int `json:"tokenIndex"`
}

// ResolveCaptures returns the opposing tokens captured when the mover lands
// on landing. Any opponent holding two or more tokens on the cell forms a
// blockade that cancels every capture at that landing, including single
// tokens of other colors. Safe cells grant no immunity.
func ResolveCaptures(players []Player, mover int, landing board.Cell) []Capture {
	if landing == board.Yard || landing >= 100 {
		return nil
	}
	var captures []Capture
	for pi, p := range players {
		if pi == mover {
			continue
		}
		var here []int
		for ti, tok := range p.Tokens {
			if tok.Position == landing {
				here = append(here, ti)
			}
		}
		switch {
		case len(here) >= 2:
			return nil
		case len(here) == 1:
			captures = append(captures, Capture{PlayerIndex: pi, TokenIndex: here[0]})
		}
	}
	return captures
}
