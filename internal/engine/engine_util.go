package engine

// Grid is a row-major field: Grid[row][col], 0 is empty.
type Grid [][]int

func NewGrid(rows, cols int) Grid {
	g := make(Grid, rows)
	for i := range g {
		g[i] = make([]int, cols)
	}
	return g
}

func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// ClearFullRows removes every full row, shifts the rest down and returns the
// number removed.
func (g Grid) ClearFullRows() int {
	if len(g) == 0 {
		return 0
	}
	cols := len(g[0])
	kept := make([][]int, 0, len(g))
	for _, row := range g {
		if !rowFull(row) {
			kept = append(kept, row)
		}
	}
	cleared := len(g) - len(kept)
	for i := 0; i < cleared; i++ {
		g[i] = make([]int, cols)
	}
	copy(g[cleared:], kept)
	return cleared
}

// TrimBottom drops the bottom n rows and pads the top with empty rows,
// preserving the height.
func (g Grid) TrimBottom(n int) Grid {
	if len(g) == 0 || n <= 0 {
		return g.Clone()
	}
	n = min(n, len(g))
	cols := len(g[0])
	out := make(Grid, 0, len(g))
	for i := 0; i < n; i++ {
		out = append(out, make([]int, cols))
	}
	for _, row := range g[:len(g)-n] {
		out = append(out, append([]int(nil), row...))
	}
	return out
}

func rowFull(row []int) bool {
	for _, c := range row {
		if c == 0 {
			return false
		}
	}
	return true
}

func garbageRow(cols, hole int) []int {
	row := make([]int, cols)
	for i := range row {
		if i != hole {
			row[i] = GarbageCell
		}
	}
	return row
}
