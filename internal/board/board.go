package board

import (
	"fmt"
	"strings"
)

// Color identifies one of the four seats. The numeric value is also the
// hundreds digit of that color's lane cells.
type Color int

const (
	Red    Color = 1
	Green  Color = 2
	Yellow Color = 3
	Blue   Color = 4
)

// Cell is a flat cell identifier: 0 is the yard, 1..52 the shared loop,
// C*100+1..C*100+6 the private lane of color C.
type Cell int

const (
	// Yard is the off-board holding area.
	Yard Cell = 0

	loopLength = 52
	laneLength = 6
)

var colorNames = map[Color]string{
	Red:    "red",
	Green:  "green",
	Yellow: "yellow",
	Blue:   "blue",
}

// Colors returns all colors in seating order.
func Colors() []Color {
	return []Color{Red, Green, Yellow, Blue}
}

// Valid reports whether c is one of the four colors.
func (c Color) Valid() bool {
	return c >= Red && c <= Blue
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("color(%d)", int(c))
}

// MarshalText encodes a color by name.
func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid color %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a color name.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColor maps a color name to a Color.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range colorNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

// seat holds the fixed per-color landmarks on the loop.
type seat struct {
	start Cell
	entry Cell
}

var seats = map[Color]seat{
	Red:    {start: 2, entry: 52},
	Green:  {start: 15, entry: 13},
	Yellow: {start: 28, entry: 26},
	Blue:   {start: 41, entry: 39},
}

var safeCells = map[Cell]bool{
	2: true, 10: true, 15: true, 23: true,
	28: true, 36: true, 41: true, 49: true,
}

// LoopLength is the number of shared loop cells.
func LoopLength() int { return loopLength }

// LaneLength is the number of cells in each private lane, terminal included.
func LaneLength() int { return laneLength }

// StartingCell is where a token of color c lands when released from the yard.
func StartingCell(c Color) Cell { return seats[c].start }

// LaneEntryCell is the last loop cell color c visits before its lane.
func LaneEntryCell(c Color) Cell { return seats[c].entry }

// Lane returns the ordered lane cells of color c; the last one is terminal.
func Lane(c Color) [laneLength]Cell {
	var lane [laneLength]Cell
	for i := range lane {
		lane[i] = Cell(int(c)*100 + i + 1)
	}
	return lane
}

// Terminal is the victory cell of color c.
func Terminal(c Color) Cell { return Cell(int(c)*100 + laneLength) }

// IsLoopCell reports whether id is on the shared loop.
func IsLoopCell(id Cell) bool { return id >= 1 && id <= loopLength }

// LoopIndex returns the zero-based ordinal of a loop cell, or -1.
func LoopIndex(id Cell) int {
	if !IsLoopCell(id) {
		return -1
	}
	return int(id) - 1
}

// IsLaneCell reports whether id belongs to any color's lane.
func IsLaneCell(id Cell) bool {
	c := Color(int(id) / 100)
	n := int(id) % 100
	return c.Valid() && n >= 1 && n <= laneLength
}

// LaneColor returns the owner of a lane cell.
func LaneColor(id Cell) (Color, bool) {
	if !IsLaneCell(id) {
		return 0, false
	}
	return Color(int(id) / 100), true
}

// LaneIndex returns the zero-based position of id inside its lane, or -1.
func LaneIndex(id Cell) int {
	if !IsLaneCell(id) {
		return -1
	}
	return int(id)%100 - 1
}

// IsSafeCell reports whether id is a designated safe cell.
func IsSafeCell(id Cell) bool { return safeCells[id] }

// Valid reports whether id is any known cell identifier.
func (id Cell) Valid() bool {
	return id == Yard || IsLoopCell(id) || IsLaneCell(id)
}

// Next returns the loop cell after id, wrapping at the end of the loop.
func Next(id Cell) Cell {
	return Cell(int(id)%loopLength + 1)
}

// Distance is the number of forward steps on the loop from a to b.
func Distance(a, b Cell) int {
	return (int(b) - int(a) + loopLength) % loopLength
}
