// Package registry owns the set of live rooms and the player→room index.
// It is an actor like the rooms it creates, and it never waits on a room:
// rooms report back through its inbox.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blockbattle/tetris-server/internal/room"
	"github.com/blockbattle/tetris-server/pkg/types"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrInvalidMaxPlayers = errors.New("invalid max_players")
	ErrClosed            = errors.New("registry closed")
)

type Msg interface{ isRegistryMsg() }

// CreateRoom opens a room with the host already seated and binds the host
// to it.
type CreateRoom struct {
	Name       string
	MaxPlayers int // zero picks the default
	ItemMode   bool
	HostID     string
	HostName   string
	Reply      chan CreateResult
}

type CreateResult struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	RoomID string
	Reply  chan *room.Room // nil when unknown
}

// RoomOf finds the room a player is bound to.
type RoomOf struct {
	PlayerID string
	Reply    chan *room.Room
}

type Bind struct {
	PlayerID string
	RoomID   string
}

// Unbind clears the binding only if it still points at RoomID.
type Unbind struct {
	PlayerID string
	RoomID   string
}

// ListRooms replies with the joinable rooms, oldest first.
type ListRooms struct {
	Reply chan []types.RoomInfo
}

type RemoveRoom struct{ RoomID string }

type Shutdown struct{}

func (CreateRoom) isRegistryMsg() {}
func (GetRoom) isRegistryMsg()    {}
func (RoomOf) isRegistryMsg()     {}
func (Bind) isRegistryMsg()       {}
func (Unbind) isRegistryMsg()     {}
func (ListRooms) isRegistryMsg()  {}
func (RemoveRoom) isRegistryMsg() {}
func (Shutdown) isRegistryMsg()   {}

// Options configure every room the registry creates.
type Options struct {
	DefaultMaxPlayers int
	MaxPlayersLimit   int
	Rows              int
	Cols              int
	TickInterval      time.Duration
	Sender            room.Sender
	Recorder          room.Recorder
	Logger            *zap.Logger
	NewID             func() string
}

type Registry struct {
	inbox   chan Msg
	rooms   map[string]*room.Room
	order   []string // creation order
	players map[string]string
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, opts Options) *Registry {
	if opts.MaxPlayersLimit <= 0 {
		opts.MaxPlayersLimit = 8
	}
	if opts.DefaultMaxPlayers <= 0 {
		opts.DefaultMaxPlayers = min(4, opts.MaxPlayersLimit)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:   make(chan Msg, 64),
		rooms:   make(map[string]*room.Room),
		players: make(map[string]string),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// Send queues m, reporting false once the registry has stopped.
func (r *Registry) Send(m Msg) bool {
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

// Done is closed after every room has been told to stop.
func (r *Registry) Done() <-chan struct{} { return r.done }

func (r *Registry) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				rm, err := r.create(msg)
				msg.Reply <- CreateResult{Room: rm, Err: err}

			case GetRoom:
				msg.Reply <- r.rooms[msg.RoomID] // May be nil

			case RoomOf:
				msg.Reply <- r.rooms[r.players[msg.PlayerID]]

			case Bind:
				if r.rooms[msg.RoomID] != nil {
					r.players[msg.PlayerID] = msg.RoomID
				}

			case Unbind:
				if r.players[msg.PlayerID] == msg.RoomID {
					delete(r.players, msg.PlayerID)
				}

			case ListRooms:
				msg.Reply <- r.list()

			case RemoveRoom:
				r.remove(msg.RoomID)

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) create(msg CreateRoom) (*room.Room, error) {
	maxPlayers := msg.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = r.opts.DefaultMaxPlayers
	}
	if maxPlayers < 1 || maxPlayers > r.opts.MaxPlayersLimit {
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidMaxPlayers, r.opts.MaxPlayersLimit)
	}

	id := r.opts.NewID()
	rm := room.New(r.ctx, room.Config{
		ID:           id,
		Name:         msg.Name,
		MaxPlayers:   maxPlayers,
		ItemMode:     msg.ItemMode,
		Rows:         r.opts.Rows,
		Cols:         r.opts.Cols,
		TickInterval: r.opts.TickInterval,
	}, msg.HostID, msg.HostName, room.Deps{
		Sender:   r.opts.Sender,
		Recorder: r.opts.Recorder,
		Logger:   r.log,
		OnClose:  r.roomClosed,
	})
	r.rooms[id] = rm
	r.order = append(r.order, id)
	r.players[msg.HostID] = id
	r.log.Info("room created",
		zap.String("room_id", id),
		zap.String("host_id", msg.HostID),
		zap.Int("max_players", maxPlayers),
		zap.Bool("item_mode", msg.ItemMode),
	)
	return rm, nil
}

// roomClosed runs on the room goroutine, so it hands off without waiting
// for the registry loop.
func (r *Registry) roomClosed(roomID string) {
	go r.Send(RemoveRoom{RoomID: roomID})
}

func (r *Registry) remove(id string) {
	if _, ok := r.rooms[id]; !ok {
		return
	}
	delete(r.rooms, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	for pid, rid := range r.players {
		if rid == id {
			delete(r.players, pid)
		}
	}
	r.log.Info("room destroyed", zap.String("room_id", id))
}

func (r *Registry) list() []types.RoomInfo {
	out := make([]types.RoomInfo, 0, len(r.order))
	for _, id := range r.order {
		// an empty room is closing and only waits for its RemoveRoom
		if info := r.rooms[id].Info(); info.PlayerCount > 0 && info.Joinable() {
			out = append(out, info)
		}
	}
	return out
}

func (r *Registry) shutdown() {
	for _, rm := range r.rooms {
		rm.Close()
	}
	clear(r.rooms)
	clear(r.players)
	r.order = nil
	r.cancel()
	r.log.Info("registry stopped")
}

// --- request helpers ---

func (r *Registry) ask(ctx context.Context, m Msg) error {
	if !r.Send(m) {
		return ErrClosed
	}
	return ctx.Err()
}

// Create opens a room and seats the host.
func (r *Registry) Create(ctx context.Context, msg CreateRoom) (*room.Room, error) {
	msg.Reply = make(chan CreateResult, 1)
	if err := r.ask(ctx, msg); err != nil {
		return nil, err
	}
	select {
	case res := <-msg.Reply:
		return res.Room, res.Err
	case <-r.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) Get(ctx context.Context, roomID string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := r.ask(ctx, GetRoom{RoomID: roomID, Reply: reply}); err != nil {
		return nil, err
	}
	return awaitRoom(ctx, r.done, reply)
}

// RoomOf returns the player's current room, or nil.
func (r *Registry) RoomOf(ctx context.Context, playerID string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	if err := r.ask(ctx, RoomOf{PlayerID: playerID, Reply: reply}); err != nil {
		return nil, err
	}
	rm, err := awaitRoom(ctx, r.done, reply)
	if errors.Is(err, ErrRoomNotFound) {
		return nil, nil
	}
	return rm, err
}

func (r *Registry) Bind(playerID, roomID string) {
	r.Send(Bind{PlayerID: playerID, RoomID: roomID})
}

func (r *Registry) Unbind(playerID, roomID string) {
	r.Send(Unbind{PlayerID: playerID, RoomID: roomID})
}

// List returns the joinable rooms.
func (r *Registry) List(ctx context.Context) ([]types.RoomInfo, error) {
	reply := make(chan []types.RoomInfo, 1)
	if err := r.ask(ctx, ListRooms{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-r.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the registry and every room, then waits for the loop.
func (r *Registry) Close() {
	r.cancel()
	<-r.done
}

func awaitRoom(ctx context.Context, done <-chan struct{}, reply <-chan *room.Room) (*room.Room, error) {
	select {
	case rm := <-reply:
		if rm == nil {
			return nil, ErrRoomNotFound
		}
		return rm, nil
	case <-done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
