// Package room runs one multiplayer room as an actor: a single goroutine
// owns the roster, the per-player engines and the targeting graph, and
// everything else talks to it through its inbox.
package room

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blockbattle/tetris-server/internal/engine"
	"github.com/blockbattle/tetris-server/internal/store"
	"github.com/blockbattle/tetris-server/internal/targeting"
	"github.com/blockbattle/tetris-server/pkg/types"
)

var (
	ErrRoomFull       = errors.New("room is full")
	ErrGameInProgress = errors.New("game already in progress")
	ErrAlreadyMember  = errors.New("already in this room")
	ErrClosed         = errors.New("room closed")
)

// State is the room lifecycle.
type State int

const (
	StateLobby State = iota
	StateStarting
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Sender delivers outbound messages to connected players. Both calls must
// not block; the connection hub satisfies this.
type Sender interface {
	Send(playerID string, msg any) bool
	Broadcast(playerIDs []string, msg any)
}

// Recorder receives finished matches.
type Recorder interface {
	Record(ctx context.Context, res store.MatchResult) error
}

type Msg interface{ isRoomMsg() }

// Join adds a player. Reply receives nil or one of the Err* values.
type Join struct {
	PlayerID string
	Name     string
	Reply    chan error
}

func (Join) isRoomMsg() {}

// Leave removes a player; Reply, if set, is closed once the roster changed.
// Moved marks a player who switched to another room; they get no room_left.
type Leave struct {
	PlayerID string
	Moved    bool
	Reply    chan struct{}
}

func (Leave) isRoomMsg() {}

type SetReady struct {
	PlayerID string
	Ready    bool
}

func (SetReady) isRoomMsg() {}

// UpdateGrid is a client-side board report. Nil optionals keep the previous
// value.
type UpdateGrid struct {
	PlayerID string
	Grid     [][]int
	Score    int
	Level    *int
	Lines    *int
	Combo    *int
}

func (UpdateGrid) isRoomMsg() {}

// Attack routes garbage lines. An empty TargetID sends to every other member.
type Attack struct {
	PlayerID string
	TargetID string
	Lines    int
	Combo    int
}

func (Attack) isRoomMsg() {}

type SwitchTarget struct{ PlayerID string }

func (SwitchTarget) isRoomMsg() {}

type ItemAttack struct {
	PlayerID string
	TargetID string
	ItemType string
}

func (ItemAttack) isRoomMsg() {}

// GridSwap hands the requester's grid to the target and asks for the
// target's grid in return.
type GridSwap struct {
	PlayerID string
	TargetID string
	Grid     [][]int
}

func (GridSwap) isRoomMsg() {}

// SendGrid answers a request_grid: the grid goes to TargetID.
type SendGrid struct {
	PlayerID string
	TargetID string
	Grid     [][]int
}

func (SendGrid) isRoomMsg() {}

type GameOver struct{ PlayerID string }

func (GameOver) isRoomMsg() {}

// Input drives the server-side engine of the player.
type Input struct {
	PlayerID string
	Action   string
}

func (Input) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

// View is a race-free copy of the room internals.
type View struct {
	State   State
	Info    types.RoomInfo
	Game    types.GameState
	Engines int
	Tick    uint64
}

// Config describes a room at creation.
type Config struct {
	ID           string
	Name         string
	MaxPlayers   int
	ItemMode     bool
	Rows         int
	Cols         int
	TickInterval time.Duration
	Seed         uint64 // zero picks a time-based seed
}

// Deps are the collaborators a room reports to.
type Deps struct {
	Sender   Sender
	Recorder Recorder // optional
	Logger   *zap.Logger
	// OnClose runs on the room goroutine after the last member left or the
	// room was shut down. It must not block.
	OnClose func(roomID string)
}

type player struct {
	id     string
	name   string
	ready  bool
	alive  bool
	report types.PlayerGameState
}

type Room struct {
	cfg     Config
	inbox   chan Msg
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	out     Sender
	rec     Recorder
	log     *zap.Logger
	onClose func(string)

	state   State
	hostID  string
	order   []string // join order
	players map[string]*player
	engines map[string]*engine.Engine
	targets *targeting.Graph
	rng     *rand.Rand
	ticker  *Ticker
	started time.Time
	roundN  int // players at match start

	info   atomic.Pointer[types.RoomInfo]
	roster atomic.Pointer[[]string]
}

// New starts a room with host already seated as its first member.
func New(parent context.Context, cfg Config, hostID, hostName string, deps Deps) *Room {
	if cfg.Rows == 0 {
		cfg.Rows = engine.DefaultRows
	}
	if cfg.Cols == 0 {
		cfg.Cols = engine.DefaultCols
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second / 60
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(parent)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r := &Room{
		cfg:     cfg,
		inbox:   make(chan Msg, 64),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		out:     deps.Sender,
		rec:     deps.Recorder,
		log:     log.With(zap.String("room_id", cfg.ID)),
		onClose: deps.OnClose,
		players: make(map[string]*player),
		engines: make(map[string]*engine.Engine),
		rng:     rng,
		targets: targeting.NewGraph(rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))),
	}
	r.add(hostID, hostName)
	r.hostID = hostID
	r.publish()

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.cfg.ID }

// Info returns the latest published lobby view without touching the inbox.
func (r *Room) Info() types.RoomInfo { return *r.info.Load() }

// Members returns the roster in join order.
func (r *Room) Members() []string { return *r.roster.Load() }

// Done is closed once the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// Send queues m, reporting false when the room is already gone.
func (r *Room) Send(m Msg) bool {
	if r.ctx.Err() != nil {
		return false
	}
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Join seats a player and waits for the verdict.
func (r *Room) Join(ctx context.Context, playerID, name string) error {
	reply := make(chan error, 1)
	if !r.Send(Join{PlayerID: playerID, Name: name, Reply: reply}) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave removes a player and waits until the roster reflects it.
func (r *Room) Leave(ctx context.Context, playerID string) {
	r.awaitLeave(ctx, Leave{PlayerID: playerID})
}

// MoveOut is Leave for a player who has already been seated elsewhere.
func (r *Room) MoveOut(ctx context.Context, playerID string) {
	r.awaitLeave(ctx, Leave{PlayerID: playerID, Moved: true})
}

func (r *Room) awaitLeave(ctx context.Context, msg Leave) {
	reply := make(chan struct{})
	msg.Reply = reply
	if !r.Send(msg) {
		return
	}
	select {
	case <-reply:
	case <-r.done:
	case <-ctx.Done():
	}
}

// Close stops the room goroutine.
func (r *Room) Close() { r.cancel() }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			if stop := r.handle(m); stop {
				r.shutdown()
				return
			}
		}
	}
}

// handle applies one message and reports whether the room should stop.
func (r *Room) handle(m Msg) bool {
	switch msg := m.(type) {
	case Join:
		err := r.join(msg.PlayerID, msg.Name)
		msg.Reply <- err

	case Leave:
		empty := r.leave(msg.PlayerID, !msg.Moved)
		if msg.Reply != nil {
			close(msg.Reply)
		}
		return empty

	case SetReady:
		r.setReady(msg.PlayerID, msg.Ready)

	case UpdateGrid:
		r.updateGrid(msg)

	case Attack:
		r.attack(msg)

	case SwitchTarget:
		r.switchTarget(msg.PlayerID)

	case ItemAttack:
		r.itemAttack(msg)

	case GridSwap:
		r.gridSwap(msg)

	case SendGrid:
		r.sendGrid(msg)

	case GameOver:
		if r.state == StateActive && r.isAlive(msg.PlayerID) {
			r.eliminate(msg.PlayerID)
		}

	case Input:
		r.input(msg)

	case GetState:
		msg.Reply <- r.view()

	case Shutdown:
		return true
	}
	return false
}

func (r *Room) shutdown() {
	r.stopTicker()
	r.cancel()
	r.log.Info("room closed", zap.Int("players", len(r.players)))
	if r.onClose != nil {
		r.onClose(r.cfg.ID)
	}
}

func (r *Room) add(id, name string) {
	r.players[id] = &player{id: id, name: name, report: r.emptyReport()}
	r.order = append(r.order, id)
}

func (r *Room) join(id, name string) error {
	switch {
	case r.state != StateLobby:
		return ErrGameInProgress
	case r.players[id] != nil:
		return ErrAlreadyMember
	case len(r.players) >= r.cfg.MaxPlayers:
		return ErrRoomFull
	}
	r.add(id, name)
	r.publish()
	r.log.Info("player joined", zap.String("player_id", id), zap.Int("players", len(r.players)))

	info := r.Info()
	r.out.Send(id, types.RoomMessage{Type: types.MsgRoomJoined, Room: info})
	r.out.Broadcast(r.order, types.RoomMessage{Type: types.MsgRoomUpdate, Room: info})
	return nil
}

// leave reports whether the room is now empty.
func (r *Room) leave(id string, notify bool) bool {
	p := r.players[id]
	if p == nil {
		return false
	}
	delete(r.players, id)
	delete(r.engines, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.log.Info("player left", zap.String("player_id", id), zap.Int("players", len(r.players)))
	if notify {
		r.out.Send(id, types.RoomLeft{Type: types.MsgRoomLeft})
	}

	if len(r.players) == 0 {
		r.publish()
		return true
	}
	if r.hostID == id {
		r.hostID = r.order[0]
		r.log.Info("host reassigned", zap.String("host_id", r.hostID))
	}

	if r.state == StateActive && p.alive {
		p.alive = false
		r.retarget(id)
	}
	r.publish()
	r.out.Broadcast(r.order, types.RoomMessage{Type: types.MsgRoomUpdate, Room: r.Info()})

	if r.state == StateActive {
		r.checkEnd()
	} else if r.state == StateLobby && r.allReady() {
		r.startMatch()
	}
	return false
}

func (r *Room) setReady(id string, ready bool) {
	p := r.players[id]
	if p == nil || r.state != StateLobby {
		return
	}
	p.ready = ready
	r.publish()
	if r.allReady() {
		r.startMatch()
		return
	}
	r.out.Broadcast(r.order, types.RoomMessage{Type: types.MsgRoomUpdate, Room: r.Info()})
}

func (r *Room) allReady() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.ready {
			return false
		}
	}
	return true
}

func (r *Room) isAlive(id string) bool {
	p := r.players[id]
	return p != nil && p.alive
}

func (r *Room) emptyReport() types.PlayerGameState {
	return types.PlayerGameState{Grid: engine.NewGrid(r.cfg.Rows, r.cfg.Cols), Level: 1}
}

// publish refreshes the lock-free snapshots read by the registry and the
// ticker.
func (r *Room) publish() {
	info := types.RoomInfo{
		RoomID:      r.cfg.ID,
		RoomName:    r.cfg.Name,
		HostID:      r.hostID,
		PlayerCount: len(r.players),
		MaxPlayers:  r.cfg.MaxPlayers,
		GameActive:  r.state == StateActive,
		ItemMode:    r.cfg.ItemMode,
		State:       r.state.String(),
		Players:     make([]types.PlayerInfo, 0, len(r.order)),
	}
	for _, id := range r.order {
		p := r.players[id]
		info.Players = append(info.Players, types.PlayerInfo{ID: p.id, Name: p.name, Ready: p.ready})
	}
	r.info.Store(&info)

	roster := slices.Clone(r.order)
	r.roster.Store(&roster)
}

func (r *Room) gameState() types.GameState {
	gs := types.GameState{
		Players:    make([]types.PlayerSummary, 0, len(r.order)),
		GameActive: r.state == StateActive,
		GameStates: make(map[string]types.PlayerGameState, len(r.order)),
	}
	for _, id := range r.order {
		p := r.players[id]
		gs.Players = append(gs.Players, types.PlayerSummary{ID: id, Name: p.name, Score: p.report.Score, Ready: p.ready})
		gs.GameStates[id] = p.report
	}
	if r.state == StateActive {
		gs.TargetingInfo = r.targets.Snapshot()
	}
	return gs
}

func (r *Room) view() View {
	v := View{
		State:   r.state,
		Info:    r.Info(),
		Game:    r.gameState(),
		Engines: len(r.engines),
	}
	if r.ticker != nil {
		v.Tick = r.ticker.Tick()
	}
	return v
}
