package engine

import (
	"math"
	"math/rand/v2"
	"testing"
)

func newTestEngine(t *testing.T, seed uint64) *Engine {
	t.Helper()
	e, err := New(DefaultRows, DefaultCols, rand.New(rand.NewPCG(seed, seed^0x9e37)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

// place replaces the falling piece, bypassing the bag.
func place(e *Engine, k Kind) {
	e.current = e.spawnAt(k)
	e.phase = PhaseFalling
}

func fillRow(g Grid, row int, except ...int) {
	skip := map[int]bool{}
	for _, c := range except {
		skip[c] = true
	}
	for c := range g[row] {
		if !skip[c] {
			g[row][c] = GarbageCell
		}
	}
}

func TestNew_RejectsTinyBoard(t *testing.T) {
	if _, err := New(3, 10, rand.New(rand.NewPCG(1, 2))); err != ErrBadDimensions {
		t.Fatalf("want ErrBadDimensions, got %v", err)
	}
}

func TestBag_EveryCycleIsPermutation(t *testing.T) {
	b := NewBag(rand.New(rand.NewPCG(7, 7)))
	for cycle := 0; cycle < 20; cycle++ {
		seen := map[Kind]int{}
		for i := 0; i < NumKinds; i++ {
			seen[b.Draw()]++
		}
		if len(seen) != NumKinds {
			t.Fatalf("cycle %d: want %d distinct kinds, got %v", cycle, NumKinds, seen)
		}
	}
}

func TestSpawn_SevenSpawnsCoverEveryKind(t *testing.T) {
	for seed := uint64(0); seed < 10; seed++ {
		e := newTestEngine(t, seed)
		seen := map[Kind]bool{e.Current().Kind: true}
		for i := 1; i < NumKinds; i++ {
			if e.Next() != e.bag.Peek() {
				t.Fatalf("next preview %v does not match bag head %v", e.Next(), e.bag.Peek())
			}
			e.spawnNext()
			seen[e.Current().Kind] = true
		}
		if len(seen) != NumKinds {
			t.Fatalf("seed %d: want every kind once, got %v", seed, seen)
		}
	}
}

func TestSpawn_CenteredAtTop(t *testing.T) {
	e := newTestEngine(t, 1)
	place(e, KindI)
	if p := e.Current(); p.X != 3 || p.Y != 0 {
		t.Fatalf("I spawn: want (3,0), got (%d,%d)", p.X, p.Y)
	}
	place(e, KindO)
	if p := e.Current(); p.X != 4 || p.Y != 0 {
		t.Fatalf("O spawn: want (4,0), got (%d,%d)", p.X, p.Y)
	}
}

func TestSpawn_CollisionIsGameOver(t *testing.T) {
	e := newTestEngine(t, 2)
	fillRow(e.grid, 0)
	fillRow(e.grid, 1)
	e.spawnNext()
	if !e.GameOver() {
		t.Fatalf("expected game over when spawn overlaps the stack")
	}
	if e.MoveLeft() || e.Rotate(true) || e.Hold() || e.HardDrop() != 0 {
		t.Fatalf("operations after game over must be no-ops")
	}
	e.Reset()
	if e.GameOver() || e.Score != 0 || e.Level != 1 {
		t.Fatalf("reset should leave game over: phase=%s score=%d level=%d", e.Phase(), e.Score, e.Level)
	}
}

func naiveValid(g Grid, rows, cols int, shape Shape, x, y int) bool {
	for r := range shape {
		for c := range shape[r] {
			if !shape[r][c] {
				continue
			}
			gx, gy := x+c, y+r
			if gx < 0 || gx >= cols || gy >= rows {
				return false
			}
			if gy < 0 {
				continue
			}
			if g[gy][gx] != 0 {
				return false
			}
		}
	}
	return true
}

func TestIsValidPosition_MatchesNaiveCheck(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 24))
	e := newTestEngine(t, 3)
	for iter := 0; iter < 2000; iter++ {
		for r := range e.grid {
			for c := range e.grid[r] {
				e.grid[r][c] = 0
				if r > 8 && rng.IntN(3) == 0 {
					e.grid[r][c] = GarbageCell
				}
			}
		}
		shape := ShapeOf(Kind(rng.IntN(NumKinds)))
		for turns := rng.IntN(4); turns > 0; turns-- {
			shape = shape.Rotate(rng.IntN(2) == 0)
		}
		x := rng.IntN(e.cols+6) - 3
		y := rng.IntN(e.rows+6) - 3

		got := e.IsValidPosition(shape, x, y)
		want := naiveValid(e.grid, e.rows, e.cols, shape, x, y)
		if got != want {
			t.Fatalf("iter %d: IsValidPosition(%v, %d, %d) = %v, naive = %v", iter, shape, x, y, got, want)
		}
	}
}

func TestIsValidPosition_AboveFieldIsPermissive(t *testing.T) {
	e := newTestEngine(t, 4)
	if !e.IsValidPosition(ShapeOf(KindO), 4, -1) {
		t.Fatalf("a piece partly above row 0 should be valid")
	}
	if e.IsValidPosition(ShapeOf(KindO), -1, 5) || e.IsValidPosition(ShapeOf(KindO), 9, 5) {
		t.Fatalf("a piece crossing a side wall must be rejected")
	}
	if e.IsValidPosition(ShapeOf(KindO), 4, 19) {
		t.Fatalf("a piece below the floor must be rejected")
	}
}

func TestShape_RotateFourTimesIsIdentity(t *testing.T) {
	for k := Kind(0); k < NumKinds; k++ {
		s := ShapeOf(k)
		r := s.Rotate(true).Rotate(true).Rotate(true).Rotate(true)
		if len(r) != len(s) {
			t.Fatalf("%v: rows changed after four turns", k)
		}
		for i := range s {
			for j := range s[i] {
				if s[i][j] != r[i][j] {
					t.Fatalf("%v: cell (%d,%d) changed after four turns", k, i, j)
				}
			}
		}
		back := s.Rotate(true).Rotate(false)
		for i := range s {
			for j := range s[i] {
				if s[i][j] != back[i][j] {
					t.Fatalf("%v: cw then ccw is not identity", k)
				}
			}
		}
	}
}

func TestRotate_AppliesFirstFittingKick(t *testing.T) {
	e := newTestEngine(t, 5)
	vertical := ShapeOf(KindI).Rotate(true)
	e.current = Piece{Kind: KindI, Shape: vertical, Rotation: 3, X: 7, Y: 5}

	if !e.Rotate(true) {
		t.Fatalf("expected the (-1,0) kick to apply")
	}
	p := e.Current()
	if p.X != 6 || p.Y != 5 || p.Rotation != 0 {
		t.Fatalf("want X=6 Y=5 rot=0, got X=%d Y=%d rot=%d", p.X, p.Y, p.Rotation)
	}
}

func TestRotate_NoFittingKickIsNoop(t *testing.T) {
	e := newTestEngine(t, 6)
	vertical := ShapeOf(KindI).Rotate(true)
	e.current = Piece{Kind: KindI, Shape: vertical, Rotation: 1, X: 9, Y: 5}

	if e.Rotate(false) {
		t.Fatalf("rotation against the right wall should fail")
	}
	p := e.Current()
	if p.X != 9 || p.Rotation != 1 || len(p.Shape) != 4 {
		t.Fatalf("piece must stay unrotated, got %+v", p)
	}
}

func TestMoves_StopAtWalls(t *testing.T) {
	e := newTestEngine(t, 7)
	place(e, KindO)
	for i := 0; i < 20; i++ {
		e.MoveLeft()
	}
	if e.Current().X != 0 {
		t.Fatalf("want X=0 at left wall, got %d", e.Current().X)
	}
	for i := 0; i < 20; i++ {
		e.MoveRight()
	}
	if e.Current().X != 8 {
		t.Fatalf("want X=8 at right wall, got %d", e.Current().X)
	}
}

func TestMoveDown_LocksWhenBlocked(t *testing.T) {
	e := newTestEngine(t, 8)
	place(e, KindO)
	moves := 0
	for e.MoveDown() {
		moves++
	}
	if moves != 18 {
		t.Fatalf("O piece should fall 18 rows, fell %d", moves)
	}
	if e.grid[19][4] != KindO.Cell() || e.grid[18][5] != KindO.Cell() {
		t.Fatalf("O piece not written at the floor")
	}
}

func TestHardDrop_TetrisScoresAndAttacks(t *testing.T) {
	e := newTestEngine(t, 9)
	for r := 16; r < 20; r++ {
		fillRow(e.grid, r, 0)
	}
	place(e, KindI)
	if !e.Rotate(true) {
		t.Fatalf("rotate I to vertical")
	}
	for e.MoveLeft() {
	}
	if e.Current().X != 0 {
		t.Fatalf("want I at column 0, got %d", e.Current().X)
	}

	attack := e.HardDrop()
	if attack != 4 {
		t.Fatalf("tetris attack: want 4, got %d", attack)
	}
	if e.Lines != 4 || e.Score != 800+4*attackScoreBonus || e.Level != 1 {
		t.Fatalf("lines=%d score=%d level=%d", e.Lines, e.Score, e.Level)
	}
	for r := 0; r < e.rows; r++ {
		for c := 0; c < e.cols; c++ {
			if e.grid[r][c] != 0 {
				t.Fatalf("field should be empty after the tetris, cell (%d,%d)=%d", r, c, e.grid[r][c])
			}
		}
	}
	if got := e.LastLock(); got.Cleared != 4 || got.Attack != 4 {
		t.Fatalf("last lock: %+v", got)
	}
}

func TestHold_OncePerSpawn(t *testing.T) {
	e := newTestEngine(t, 10)
	first := e.Current().Kind
	if !e.Hold() {
		t.Fatalf("first hold should succeed")
	}
	if held, ok := e.Held(); !ok || held != first {
		t.Fatalf("held slot: want %v, got %v (%v)", first, held, ok)
	}
	second := e.Current().Kind
	if e.Hold() {
		t.Fatalf("second hold before lock must be refused")
	}

	e.HardDrop()
	if !e.CanHold() {
		t.Fatalf("lock should re-enable hold")
	}
	third := e.Current().Kind
	if !e.Hold() {
		t.Fatalf("hold after lock should succeed")
	}
	if e.Current().Kind != first {
		t.Fatalf("swap should bring back %v, got %v", first, e.Current().Kind)
	}
	if held, _ := e.Held(); held != third {
		t.Fatalf("held slot: want %v, got %v", third, held)
	}
	_ = second
}

func TestInjectGarbage_ShiftsAndLeavesOneHole(t *testing.T) {
	e := newTestEngine(t, 11)
	fillRow(e.grid, 10, 3)
	e.InjectGarbage(2)

	if len(e.grid) != DefaultRows {
		t.Fatalf("row count changed: %d", len(e.grid))
	}
	if e.grid[8][3] != 0 || e.grid[8][0] != GarbageCell {
		t.Fatalf("row 10 should now be row 8")
	}
	for _, r := range []int{18, 19} {
		holes := 0
		for _, c := range e.grid[r] {
			if c == 0 {
				holes++
			}
		}
		if holes != 1 {
			t.Fatalf("garbage row %d: want exactly one hole, got %d", r, holes)
		}
	}
	if e.GameOver() {
		t.Fatalf("garbage below an empty top must not end the game")
	}
}

func TestInjectGarbage_HolesChosenPerRow(t *testing.T) {
	e := newTestEngine(t, 12)
	differs := false
	for i := 0; i < 50 && !differs; i++ {
		e.grid = NewGrid(e.rows, e.cols)
		e.InjectGarbage(2)
		h1, h2 := -1, -1
		for c := 0; c < e.cols; c++ {
			if e.grid[18][c] == 0 {
				h1 = c
			}
			if e.grid[19][c] == 0 {
				h2 = c
			}
		}
		differs = h1 != h2
	}
	if !differs {
		t.Fatalf("hole columns never differed between rows")
	}
}

func TestInjectGarbage_OverlapEndsGame(t *testing.T) {
	e := newTestEngine(t, 13)
	place(e, KindO)
	for e.current.Y < 18 {
		e.current.Y++
	}
	e.InjectGarbage(1)
	if !e.GameOver() {
		t.Fatalf("garbage pushed into the falling piece should end the game")
	}
}

func TestQueueGarbage_DeferredToLock(t *testing.T) {
	e := newTestEngine(t, 14)
	place(e, KindO)
	e.QueueGarbage(2)
	e.MoveDown()
	for r := range e.grid {
		for _, c := range e.grid[r] {
			if c != 0 {
				t.Fatalf("garbage must not land mid-drop")
			}
		}
	}
	e.HardDrop()
	if e.PendingGarbage() != 0 || e.LastLock().Garbage != 2 {
		t.Fatalf("pending=%d last=%+v", e.PendingGarbage(), e.LastLock())
	}
	if e.grid[17][4] != KindO.Cell() {
		t.Fatalf("locked piece should be lifted by two garbage rows")
	}
}

func TestQueueGarbage_Saturates(t *testing.T) {
	e := newTestEngine(t, 14)
	e.QueueGarbage(math.MaxInt)
	e.QueueGarbage(math.MaxInt)
	if e.PendingGarbage() != maxPendingGarbage {
		t.Fatalf("pending=%d, want %d", e.PendingGarbage(), maxPendingGarbage)
	}

	// a single against a huge balance is cancelled, never amplified
	atk, st := ResolveAttack(1, e.attack)
	if atk.Lines != 0 || atk.Cancelled != 1 || st.PendingGarbage != maxPendingGarbage-1 {
		t.Fatalf("attack=%+v pending=%d", atk, st.PendingGarbage)
	}
}

func TestGrid_TrimBottom(t *testing.T) {
	g := NewGrid(4, 4)
	fillRow(g, 2)
	fillRow(g, 3)
	g[1][1] = 5
	out := g.TrimBottom(2)
	if len(out) != 4 || out[3][1] != 5 || out[3][0] != 0 {
		t.Fatalf("unexpected trim result %v", out)
	}
	if g[3][0] != GarbageCell {
		t.Fatalf("TrimBottom must not modify the source grid")
	}
}
