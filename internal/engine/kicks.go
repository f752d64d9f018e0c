package engine

// Offset is a wall-kick translation tried after a failed rotation.
type Offset struct {
	DX int
	DY int
}

type transition struct {
	from int
	to   int
}

// One shared table for every kind, tried in listed order; the first offset
// that fits wins.
var kickTable = map[transition][]Offset{
	{0, 1}: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	{1, 0}: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	{1, 2}: {{0, 0}, {1, 0}, {1, -1}, {0, 2}, {1, 2}},
	{2, 1}: {{0, 0}, {-1, 0}, {-1, 1}, {0, -2}, {-1, -2}},
	{2, 3}: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
	{3, 2}: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	{3, 0}: {{0, 0}, {-1, 0}, {-1, -1}, {0, 2}, {-1, 2}},
	{0, 3}: {{0, 0}, {1, 0}, {1, 1}, {0, -2}, {1, -2}},
}

// KickOffsets returns the ordered kick list for a rotation transition.
func KickOffsets(from, to int) []Offset {
	if k, ok := kickTable[transition{from, to}]; ok {
		return k
	}
	return []Offset{{0, 0}}
}

func nextRotation(rot int, clockwise bool) int {
	if clockwise {
		return (rot + 1) % 4
	}
	return (rot + 3) % 4
}
