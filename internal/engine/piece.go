package engine

// Kind identifies one of the seven tetrominoes. The numeric value plus one is
// the marker written into the grid when a piece of that kind locks.
type Kind int

const (
	KindI Kind = iota
	KindO
	KindT
	KindL
	KindJ
	KindS
	KindZ
)

// NumKinds is the size of one bag cycle.
const NumKinds = 7

// GarbageCell marks grid cells filled by injected garbage rows.
const GarbageCell = 8

var kindNames = [NumKinds]string{"I", "O", "T", "L", "J", "S", "Z"}

func (k Kind) String() string {
	if k < 0 || int(k) >= NumKinds {
		return "?"
	}
	return kindNames[k]
}

// Cell is the grid marker for a locked cell of this kind.
func (k Kind) Cell() int { return int(k) + 1 }

// Shape is a piece matrix, rows of filled flags.
type Shape [][]bool

var spawnShapes = [NumKinds][][]int{
	KindI: {{1, 1, 1, 1}},
	KindO: {{1, 1}, {1, 1}},
	KindT: {{0, 1, 0}, {1, 1, 1}},
	KindL: {{1, 1, 1}, {1, 0, 0}},
	KindJ: {{1, 1, 1}, {0, 0, 1}},
	KindS: {{0, 1, 1}, {1, 1, 0}},
	KindZ: {{1, 1, 0}, {0, 1, 1}},
}

// ShapeOf returns a fresh copy of the spawn orientation for k.
func ShapeOf(k Kind) Shape {
	src := spawnShapes[k]
	s := make(Shape, len(src))
	for r, row := range src {
		s[r] = make([]bool, len(row))
		for c, v := range row {
			s[r][c] = v != 0
		}
	}
	return s
}

// Width is the column count of the widest row.
func (s Shape) Width() int {
	w := 0
	for _, row := range s {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Rotate returns the shape turned 90 degrees. Clockwise is the transpose of
// the row-reversed matrix; counter-clockwise is the row-reversed transpose.
func (s Shape) Rotate(clockwise bool) Shape {
	rows := len(s)
	if rows == 0 {
		return Shape{}
	}
	cols := s.Width()
	out := make(Shape, cols)
	for c := 0; c < cols; c++ {
		out[c] = make([]bool, rows)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < len(s[r]); c++ {
			if clockwise {
				out[c][rows-1-r] = s[r][c]
			} else {
				out[cols-1-c][r] = s[r][c]
			}
		}
	}
	return out
}

// Piece is the falling tetromino owned by an Engine.
type Piece struct {
	Kind     Kind
	Shape    Shape
	Rotation int
	X        int
	Y        int
}
