package engine

import (
	"errors"
	"math/rand/v2"
)

var ErrBadDimensions = errors.New("board must be at least 4x4")

const (
	DefaultRows = 20
	DefaultCols = 10
)

var lineScores = [4]int{100, 300, 500, 800}

const attackScoreBonus = 50

// maxPendingGarbage saturates the queued garbage balance.
const maxPendingGarbage = 1 << 16

// Phase is the per-player simulation state.
type Phase string

const (
	PhaseSpawning Phase = "spawning"
	PhaseFalling  Phase = "falling"
	PhaseLocking  Phase = "locking"
	PhaseGameOver Phase = "game_over"
)

// LockResult describes the most recent lock.
type LockResult struct {
	Cleared   int
	Attack    int
	Cancelled int
	Garbage   int // garbage rows injected after the lock
}

// Engine simulates one player's field. It is not safe for concurrent use;
// the owning room goroutine is its only caller.
type Engine struct {
	rows int
	cols int
	grid Grid

	current Piece
	next    Kind
	held    Kind
	hasHeld bool
	canHold bool

	bag *Bag
	rng *rand.Rand

	Score int
	Level int
	Lines int

	attack AttackState
	last   LockResult
	phase  Phase
}

// New builds an engine with an empty field and the first piece spawned.
func New(rows, cols int, rng *rand.Rand) (*Engine, error) {
	if rows < 4 || cols < 4 {
		return nil, ErrBadDimensions
	}
	e := &Engine{
		rows:  rows,
		cols:  cols,
		grid:  NewGrid(rows, cols),
		bag:   NewBag(rng),
		rng:   rng,
		Level: 1,
	}
	e.spawnNext()
	return e, nil
}

func (e *Engine) Rows() int            { return e.rows }
func (e *Engine) Cols() int            { return e.cols }
func (e *Engine) Grid() Grid           { return e.grid.Clone() }
func (e *Engine) Current() Piece       { return e.current }
func (e *Engine) Next() Kind           { return e.next }
func (e *Engine) Held() (Kind, bool)   { return e.held, e.hasHeld }
func (e *Engine) CanHold() bool        { return e.canHold }
func (e *Engine) GameOver() bool       { return e.phase == PhaseGameOver }
func (e *Engine) Phase() Phase         { return e.phase }
func (e *Engine) LastLock() LockResult { return e.last }
func (e *Engine) Combo() int           { return e.attack.Combo }
func (e *Engine) BackToBack() int      { return e.attack.BackToBack }
func (e *Engine) PendingGarbage() int  { return e.attack.PendingGarbage }

// Reset discards the field and counters and spawns a fresh piece. It is the
// only way out of PhaseGameOver.
func (e *Engine) Reset() {
	e.grid = NewGrid(e.rows, e.cols)
	e.bag = NewBag(e.rng)
	e.held, e.hasHeld = 0, false
	e.Score, e.Level, e.Lines = 0, 1, 0
	e.attack = AttackState{}
	e.last = LockResult{}
	e.spawnNext()
}

func (e *Engine) spawnAt(k Kind) Piece {
	shape := ShapeOf(k)
	return Piece{
		Kind:  k,
		Shape: shape,
		X:     e.cols/2 - shape.Width()/2,
		Y:     0,
	}
}

func (e *Engine) spawnNext() {
	e.phase = PhaseSpawning
	e.current = e.spawnAt(e.bag.Draw())
	e.next = e.bag.Peek()
	e.canHold = true
	if !e.IsValidPosition(e.current.Shape, e.current.X, e.current.Y) {
		e.phase = PhaseGameOver
		return
	}
	e.phase = PhaseFalling
}

// IsValidPosition reports whether shape fits at (x, y). Cells above the top
// edge are permitted and skip the occupancy check.
func (e *Engine) IsValidPosition(shape Shape, x, y int) bool {
	for r, row := range shape {
		for c, filled := range row {
			if !filled {
				continue
			}
			gx, gy := x+c, y+r
			if gx < 0 || gx >= e.cols || gy >= e.rows {
				return false
			}
			if gy >= 0 && e.grid[gy][gx] != 0 {
				return false
			}
		}
	}
	return true
}

func (e *Engine) shift(dx, dy int) bool {
	if e.GameOver() {
		return false
	}
	p := e.current
	if !e.IsValidPosition(p.Shape, p.X+dx, p.Y+dy) {
		return false
	}
	e.current.X += dx
	e.current.Y += dy
	return true
}

func (e *Engine) MoveLeft() bool  { return e.shift(-1, 0) }
func (e *Engine) MoveRight() bool { return e.shift(1, 0) }

// MoveDown drops the piece one row, locking it when it cannot fall further.
// It returns false when the move locked the piece.
func (e *Engine) MoveDown() bool {
	if e.GameOver() {
		return false
	}
	if e.shift(0, 1) {
		return true
	}
	e.Lock()
	return false
}

// HardDrop drops the piece to its resting row and locks it, returning the
// attack lines produced.
func (e *Engine) HardDrop() int {
	if e.GameOver() {
		return 0
	}
	for e.shift(0, 1) {
	}
	return e.Lock()
}

// Rotate turns the current piece, trying kick offsets in order when the
// unchanged anchor does not fit. It reports whether the rotation applied.
func (e *Engine) Rotate(clockwise bool) bool {
	if e.GameOver() {
		return false
	}
	p := e.current
	rotated := p.Shape.Rotate(clockwise)
	to := nextRotation(p.Rotation, clockwise)

	if e.IsValidPosition(rotated, p.X, p.Y) {
		e.current.Shape = rotated
		e.current.Rotation = to
		return true
	}
	for _, k := range KickOffsets(p.Rotation, to) {
		if e.IsValidPosition(rotated, p.X+k.DX, p.Y+k.DY) {
			e.current.X += k.DX
			e.current.Y += k.DY
			e.current.Shape = rotated
			e.current.Rotation = to
			return true
		}
	}
	return false
}

// Hold swaps the current piece with the held slot, once per spawn.
func (e *Engine) Hold() bool {
	if e.GameOver() || !e.canHold {
		return false
	}
	cur := e.current.Kind
	if !e.hasHeld {
		e.held, e.hasHeld = cur, true
		e.spawnNext()
	} else {
		prev := e.held
		e.held = cur
		e.current = e.spawnAt(prev)
		if !e.IsValidPosition(e.current.Shape, e.current.X, e.current.Y) {
			e.phase = PhaseGameOver
		}
	}
	e.canHold = false
	return true
}

// Lock writes the piece into the grid, clears full rows, resolves the attack,
// spawns the next piece and only then injects garbage that arrived while the
// piece was falling. It returns the attack lines produced.
func (e *Engine) Lock() int {
	if e.GameOver() {
		return 0
	}
	e.phase = PhaseLocking
	p := e.current
	for r, row := range p.Shape {
		for c, filled := range row {
			gy, gx := p.Y+r, p.X+c
			if filled && gy >= 0 && gy < e.rows && gx >= 0 && gx < e.cols {
				e.grid[gy][gx] = p.Kind.Cell()
			}
		}
	}

	cleared := e.grid.ClearFullRows()
	atk, st := ResolveAttack(cleared, e.attack)
	e.attack = st
	if cleared > 0 {
		e.Lines += cleared
		e.Score += lineScores[min(cleared, 4)-1] * e.Level
		e.Score += atk.Lines * attackScoreBonus
		e.Level = e.Lines/10 + 1
	}
	e.last = LockResult{Cleared: cleared, Attack: atk.Lines, Cancelled: atk.Cancelled}

	e.spawnNext()
	if pending := e.attack.PendingGarbage; pending > 0 && !e.GameOver() {
		e.attack.PendingGarbage = 0
		e.InjectGarbage(pending)
		e.last.Garbage = pending
	}
	return atk.Lines
}

// QueueGarbage records incoming attack lines; they are injected at the next
// lock boundary, after line clears have had a chance to cancel them.
func (e *Engine) QueueGarbage(n int) {
	if n <= 0 {
		return
	}
	if n >= maxPendingGarbage-e.attack.PendingGarbage {
		e.attack.PendingGarbage = maxPendingGarbage
		return
	}
	e.attack.PendingGarbage += n
}

// InjectGarbage removes n rows from the top and appends n garbage rows, each
// with one random hole. The current piece is re-checked afterwards.
func (e *Engine) InjectGarbage(n int) {
	if n <= 0 || e.GameOver() {
		return
	}
	n = min(n, e.rows)
	rows := make(Grid, 0, e.rows)
	rows = append(rows, e.grid[n:]...)
	for i := 0; i < n; i++ {
		rows = append(rows, garbageRow(e.cols, e.rng.IntN(e.cols)))
	}
	e.grid = rows
	if !e.IsValidPosition(e.current.Shape, e.current.X, e.current.Y) {
		e.phase = PhaseGameOver
	}
}

// Snapshot renders the grid with the falling piece drawn in.
func (e *Engine) Snapshot() Grid {
	g := e.grid.Clone()
	if e.GameOver() {
		return g
	}
	p := e.current
	for r, row := range p.Shape {
		for c, filled := range row {
			gy, gx := p.Y+r, p.X+c
			if filled && gy >= 0 && gy < e.rows && gx >= 0 && gx < e.cols {
				g[gy][gx] = p.Kind.Cell()
			}
		}
	}
	return g
}
