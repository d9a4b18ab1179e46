package board

// Coord is a row/column position on the 15x15 board grid.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// loopCoords[i] is the grid position of loop cell i+1, walking clockwise
// from the left arm.
var loopCoords = buildLoop()

var laneCoords = map[Color][laneLength]Coord{
	Red:    {{7, 1}, {7, 2}, {7, 3}, {7, 4}, {7, 5}, {7, 6}},
	Green:  {{1, 7}, {2, 7}, {3, 7}, {4, 7}, {5, 7}, {6, 7}},
	Yellow: {{7, 13}, {7, 12}, {7, 11}, {7, 10}, {7, 9}, {7, 8}},
	Blue:   {{13, 7}, {12, 7}, {11, 7}, {10, 7}, {9, 7}, {8, 7}},
}

var yardSlots = map[Color][4]Coord{
	Red:    {{1, 1}, {1, 4}, {4, 1}, {4, 4}},
	Green:  {{1, 10}, {1, 13}, {4, 10}, {4, 13}},
	Yellow: {{10, 10}, {10, 13}, {13, 10}, {13, 13}},
	Blue:   {{10, 1}, {10, 4}, {13, 1}, {13, 4}},
}

type segment struct {
	from  Coord
	dRow  int
	dCol  int
	count int
}

func buildLoop() [loopLength]Coord {
	segments := []segment{
		{Coord{6, 0}, 0, 1, 6},   // left arm, top row
		{Coord{5, 6}, -1, 0, 6},  // top arm, left column
		{Coord{0, 7}, 0, 1, 2},   // top edge
		{Coord{1, 8}, 1, 0, 5},   // top arm, right column
		{Coord{6, 9}, 0, 1, 6},   // right arm, top row
		{Coord{7, 14}, 1, 0, 2},  // right edge
		{Coord{8, 13}, 0, -1, 5}, // right arm, bottom row
		{Coord{9, 8}, 1, 0, 6},   // bottom arm, right column
		{Coord{14, 7}, 0, -1, 2}, // bottom edge
		{Coord{13, 6}, -1, 0, 5}, // bottom arm, left column
		{Coord{8, 5}, 0, -1, 6},  // left arm, bottom row
		{Coord{7, 0}, 0, 0, 1},   // left edge
	}
	var out [loopLength]Coord
	i := 0
	for _, s := range segments {
		for k := 0; k < s.count; k++ {
			out[i] = Coord{Row: s.from.Row + k*s.dRow, Col: s.from.Col + k*s.dCol}
			i++
		}
	}
	return out
}

// CoordOf returns the grid position of a loop or lane cell. Yard cells have
// no single position; use YardSlots.
func CoordOf(id Cell) (Coord, bool) {
	if IsLoopCell(id) {
		return loopCoords[LoopIndex(id)], true
	}
	if c, ok := LaneColor(id); ok {
		return laneCoords[c][LaneIndex(id)], true
	}
	return Coord{}, false
}

// YardSlots returns the four yard positions of color c, one per token.
func YardSlots(c Color) [4]Coord {
	return yardSlots[c]
}
