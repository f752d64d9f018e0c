package ws

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/blockbattle/tetris-server/internal/registry"
	"github.com/blockbattle/tetris-server/internal/room"
	"github.com/blockbattle/tetris-server/pkg/types"
)

// Rooms is the registry surface the dispatcher uses.
type Rooms interface {
	Create(ctx context.Context, msg registry.CreateRoom) (*room.Room, error)
	Get(ctx context.Context, roomID string) (*room.Room, error)
	Bind(playerID, roomID string)
	Unbind(playerID, roomID string)
	List(ctx context.Context) ([]types.RoomInfo, error)
}

// Dispatcher turns decoded client messages into registry and room calls.
type Dispatcher struct {
	rooms Rooms
	out   room.Sender
	log   *zap.Logger
}

func NewDispatcher(rooms Rooms, out room.Sender, log *zap.Logger) *Dispatcher {
	return &Dispatcher{rooms: rooms, out: out, log: log}
}

// Session is the dispatcher state of one connection. It is used by that
// connection's reader goroutine only.
type Session struct {
	d        *Dispatcher
	playerID string
	room     *room.Room
	log      *zap.Logger
}

func (d *Dispatcher) Session(playerID string) *Session {
	return &Session{d: d, playerID: playerID, log: d.log.With(zap.String("player_id", playerID))}
}

func (s *Session) reply(msg any) { s.d.out.Send(s.playerID, msg) }

func (s *Session) fail(msg string) { s.reply(types.NewError(msg)) }

// Handle processes one inbound frame.
func (s *Session) Handle(ctx context.Context, data []byte) {
	var msg types.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Debug("malformed message", zap.Error(err))
		s.fail("malformed message")
		return
	}
	if !msg.Known() {
		s.log.Debug("ignoring unknown message type", zap.String("type", msg.Type))
		return
	}
	if err := msg.Validate(); err != nil {
		s.log.Debug("rejected message", zap.String("type", msg.Type), zap.Error(err))
		s.fail(err.Error())
		return
	}

	switch msg.Type {
	case types.MsgListRooms:
		s.listRooms(ctx)
	case types.MsgCreateRoom:
		s.createRoom(ctx, msg)
	case types.MsgJoinRoom:
		s.joinRoom(ctx, msg)
	case types.MsgLeaveRoom:
		s.leave(ctx)
	default:
		s.forward(msg)
	}
}

// Close runs when the connection goes away; it counts as leaving the room.
func (s *Session) Close(ctx context.Context) {
	s.leave(ctx)
}

func (s *Session) listRooms(ctx context.Context) {
	rooms, err := s.d.rooms.List(ctx)
	if err != nil {
		s.log.Warn("list rooms", zap.Error(err))
		s.fail("server unavailable")
		return
	}
	s.reply(types.RoomList{Type: types.MsgRoomList, Rooms: rooms})
}

func (s *Session) createRoom(ctx context.Context, msg types.ClientMessage) {
	itemMode := msg.ItemMode != nil && *msg.ItemMode
	rm, err := s.d.rooms.Create(ctx, registry.CreateRoom{
		Name:       types.CleanName(msg.RoomName),
		MaxPlayers: types.IntOr(msg.MaxPlayers, 0),
		ItemMode:   itemMode,
		HostID:     s.playerID,
		HostName:   types.CleanName(msg.PlayerName),
	})
	if err != nil {
		s.fail(errorText(err))
		return
	}
	prev := s.room
	s.room = rm
	info := rm.Info()
	s.reply(types.RoomMessage{Type: types.MsgRoomJoined, Room: info})
	s.d.out.Broadcast(rm.Members(), types.RoomMessage{Type: types.MsgRoomUpdate, Room: info})
	s.moveOut(ctx, prev)
}

func (s *Session) joinRoom(ctx context.Context, msg types.ClientMessage) {
	rm, err := s.d.rooms.Get(ctx, msg.RoomID)
	if err != nil {
		s.fail(errorText(err))
		return
	}
	if rm == s.room {
		s.fail(room.ErrAlreadyMember.Error())
		return
	}
	if err := rm.Join(ctx, s.playerID, types.CleanName(msg.PlayerName)); err != nil {
		s.fail(errorText(err))
		return
	}
	s.d.rooms.Bind(s.playerID, rm.ID())
	prev := s.room
	s.room = rm
	s.moveOut(ctx, prev)
}

func (s *Session) leave(ctx context.Context) {
	prev := s.room
	s.room = nil
	s.leaveRoom(ctx, prev)
}

func (s *Session) leaveRoom(ctx context.Context, rm *room.Room) {
	if rm == nil {
		return
	}
	rm.Leave(ctx, s.playerID)
	s.d.rooms.Unbind(s.playerID, rm.ID())
}

// moveOut drops the previous room after the player was seated in a new one.
// The player already has room_joined for the new room, so the old one sends
// no room_left.
func (s *Session) moveOut(ctx context.Context, rm *room.Room) {
	if rm == nil {
		return
	}
	rm.MoveOut(ctx, s.playerID)
	s.d.rooms.Unbind(s.playerID, rm.ID())
}

// forward hands an in-room message to the player's room actor.
func (s *Session) forward(msg types.ClientMessage) {
	if s.room == nil {
		s.fail("not in a room")
		return
	}
	m := roomMsg(s.playerID, msg)
	if m == nil {
		return
	}
	if !s.room.Send(m) {
		s.room = nil
		s.fail("not in a room")
	}
}

func roomMsg(playerID string, msg types.ClientMessage) room.Msg {
	switch msg.Type {
	case types.MsgReady:
		return room.SetReady{PlayerID: playerID, Ready: *msg.Ready}
	case types.MsgUpdateGrid:
		return room.UpdateGrid{
			PlayerID: playerID,
			Grid:     msg.Grid,
			Score:    *msg.Score,
			Level:    msg.Level,
			Lines:    msg.Lines,
			Combo:    msg.Combo,
		}
	case types.MsgAttack:
		return room.Attack{
			PlayerID: playerID,
			TargetID: msg.TargetID,
			Lines:    *msg.Lines,
			Combo:    types.IntOr(msg.Combo, 0),
		}
	case types.MsgSwitchTarget:
		return room.SwitchTarget{PlayerID: playerID}
	case types.MsgItemAttack:
		return room.ItemAttack{PlayerID: playerID, TargetID: msg.TargetID, ItemType: msg.ItemType}
	case types.MsgGridSwap:
		return room.GridSwap{PlayerID: playerID, TargetID: msg.TargetID, Grid: msg.MyGrid}
	case types.MsgSendGrid:
		return room.SendGrid{PlayerID: playerID, TargetID: msg.TargetID, Grid: msg.MyGrid}
	case types.MsgGameOver:
		return room.GameOver{PlayerID: playerID}
	case types.MsgInput:
		return room.Input{PlayerID: playerID, Action: msg.Action}
	}
	return nil
}

// errorText is the client-facing text for a registry or room failure.
func errorText(err error) string {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound), errors.Is(err, room.ErrClosed):
		return "room not found"
	case errors.Is(err, registry.ErrClosed):
		return "server shutting down"
	case errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrGameInProgress),
		errors.Is(err, room.ErrAlreadyMember),
		errors.Is(err, registry.ErrInvalidMaxPlayers):
		return err.Error()
	default:
		return "request failed"
	}
}
