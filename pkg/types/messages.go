package types

import (
	"errors"
	"fmt"
)

// Client -> Server message types.
const (
	MsgListRooms    = "list_rooms"
	MsgCreateRoom   = "create_room"
	MsgJoinRoom     = "join_room"
	MsgLeaveRoom    = "leave_room"
	MsgReady        = "ready"
	MsgUpdateGrid   = "update_grid"
	MsgAttack       = "attack"
	MsgSwitchTarget = "switch_target"
	MsgItemAttack   = "item_attack"
	MsgGridSwap     = "grid_swap"
	MsgSendGrid     = "send_grid"
	MsgGameOver     = "game_over"
	MsgInput        = "input"
)

// Server -> Client message types.
const (
	MsgRoomList        = "room_list"
	MsgRoomJoined      = "room_joined"
	MsgRoomUpdate      = "room_update"
	MsgRoomLeft        = "room_left"
	MsgError           = "error"
	MsgGameStart       = "game_start"
	MsgGameTick        = "game_tick"
	MsgGameStateUpdate = "game_state_update"
	MsgReceiveAttack   = "receive_attack"
	MsgTargetChanged   = "target_changed"
	MsgItemChange      = "item_change"
	MsgTargetRedirect  = "target_redirect"
	MsgRequestGrid     = "request_grid"
	MsgPlayerGameOver  = "player_game_over"
	MsgGameEnd         = "game_end"
)

// Inputs accepted by MsgInput.
const (
	InputLeft      = "left"
	InputRight     = "right"
	InputDown      = "down"
	InputDrop      = "drop"
	InputRotateCW  = "rotate_cw"
	InputRotateCCW = "rotate_ccw"
	InputHold      = "hold"
)

// Item kinds with server-side routing; any other item type is forwarded to
// the target unchanged.
const (
	ItemToClear        = "item_to_clear"
	ItemRedirectTarget = "redirect_target"
	ChangeToClear      = "to_clear"
)

// End reasons carried by game_end.
const (
	ReasonLastSurvivor = "last_survivor"
	ReasonDraw         = "draw"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

// ClientMessage is the union of every inbound payload. Optional numbers and
// flags are pointers so a missing field can be told apart from a zero value.
type ClientMessage struct {
	Type       string  `json:"type"`
	RoomName   string  `json:"room_name,omitempty"`
	PlayerName string  `json:"player_name,omitempty"`
	MaxPlayers *int    `json:"max_players,omitempty"`
	ItemMode   *bool   `json:"item_mode,omitempty"`
	RoomID     string  `json:"room_id,omitempty"`
	Ready      *bool   `json:"ready,omitempty"`
	Grid       [][]int `json:"grid,omitempty"`
	Score      *int    `json:"score,omitempty"`
	Level      *int    `json:"level,omitempty"`
	Lines      *int    `json:"lines,omitempty"`
	Combo      *int    `json:"combo,omitempty"`
	TargetID   string  `json:"target_id,omitempty"`
	ItemType   string  `json:"item_type,omitempty"`
	MyGrid     [][]int `json:"my_grid,omitempty"`
	Action     string  `json:"action,omitempty"`
}

// Known reports whether the message type is handled at all. Unknown types
// are dropped without a reply.
func (m ClientMessage) Known() bool {
	switch m.Type {
	case MsgListRooms, MsgCreateRoom, MsgJoinRoom, MsgLeaveRoom, MsgReady,
		MsgUpdateGrid, MsgAttack, MsgSwitchTarget, MsgItemAttack, MsgGridSwap,
		MsgSendGrid, MsgGameOver, MsgInput:
		return true
	}
	return false
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func invalid(field string) error {
	return fmt.Errorf("%w: %s", ErrInvalidField, field)
}

// MaxAttackLines bounds the lines a single attack message may carry.
const MaxAttackLines = 40

// Validate checks the fields the message type requires. Names are checked
// after CleanName, so a name of blanks and control characters is missing.
func (m ClientMessage) Validate() error {
	switch m.Type {
	case MsgCreateRoom:
		if CleanName(m.RoomName) == "" {
			return missing("room_name")
		}
		if CleanName(m.PlayerName) == "" {
			return missing("player_name")
		}
	case MsgJoinRoom:
		if m.RoomID == "" {
			return missing("room_id")
		}
		if CleanName(m.PlayerName) == "" {
			return missing("player_name")
		}
	case MsgReady:
		if m.Ready == nil {
			return missing("ready")
		}
	case MsgUpdateGrid:
		if m.Grid == nil {
			return missing("grid")
		}
		if m.Score == nil {
			return missing("score")
		}
	case MsgAttack:
		if m.Lines == nil {
			return missing("lines")
		}
		if *m.Lines < 0 || *m.Lines > MaxAttackLines {
			return invalid("lines")
		}
	case MsgItemAttack:
		if m.ItemType == "" {
			return missing("item_type")
		}
	case MsgGridSwap, MsgSendGrid:
		if m.TargetID == "" {
			return missing("target_id")
		}
		if m.MyGrid == nil {
			return missing("my_grid")
		}
	case MsgInput:
		switch m.Action {
		case "":
			return missing("action")
		case InputLeft, InputRight, InputDown, InputDrop, InputRotateCW, InputRotateCCW, InputHold:
		default:
			return invalid("action")
		}
	}
	return nil
}

// IntOr dereferences p, falling back to def when the field was omitted.
func IntOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// --- Server -> Client payloads ---

type RoomList struct {
	Type  string     `json:"type"`
	Rooms []RoomInfo `json:"rooms"`
}

// RoomMessage carries room_joined and room_update.
type RoomMessage struct {
	Type string   `json:"type"`
	Room RoomInfo `json:"room"`
}

type RoomLeft struct {
	Type string `json:"type"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) Error { return Error{Type: MsgError, Message: msg} }

type GameStart struct {
	Type          string    `json:"type"`
	GameState     GameState `json:"game_state"`
	ItemMode      bool      `json:"item_mode"`
	InitialTarget *string   `json:"initial_target,omitempty"`
}

type GameTick struct {
	Type      string `json:"type"`
	Tick      uint64 `json:"tick"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

type GameStateUpdate struct {
	Type      string    `json:"type"`
	GameState GameState `json:"game_state"`
}

type ReceiveAttack struct {
	Type       string `json:"type"`
	FromPlayer string `json:"from_player"`
	FromName   string `json:"from_name"`
	Lines      int    `json:"lines"`
	Combo      int    `json:"combo"`
}

// TargetChanged reports a new target; NewTarget is null when no live
// opponent is left.
type TargetChanged struct {
	Type      string  `json:"type"`
	NewTarget *string `json:"new_target"`
}

type ItemChange struct {
	Type       string `json:"type"`
	ChangeType string `json:"change_type"`
	FromPlayer string `json:"from_player"`
	FromName   string `json:"from_name"`
}

type ItemAttack struct {
	Type       string `json:"type"`
	ItemType   string `json:"item_type"`
	FromPlayer string `json:"from_player"`
	FromName   string `json:"from_name"`
}

type TargetRedirect struct {
	Type       string  `json:"type"`
	NewTarget  *string `json:"new_target"`
	FromPlayer string  `json:"from_player"`
	FromName   string  `json:"from_name"`
}

type GridSwap struct {
	Type       string  `json:"type"`
	Grid       [][]int `json:"grid"`
	FromPlayer string  `json:"from_player"`
	FromName   string  `json:"from_name"`
}

type RequestGrid struct {
	Type          string `json:"type"`
	RequesterID   string `json:"requester_id"`
	RequesterName string `json:"requester_name"`
}

type PlayerGameOver struct {
	Type       string `json:"type"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

type GameEnd struct {
	Type        string `json:"type"`
	WinnerID    string `json:"winner_id"`
	WinnerName  string `json:"winner_name"`
	WinnerScore int    `json:"winner_score"`
	Reason      string `json:"reason"`
}

// Envelope decodes just the type of an outbound message; clients and tests
// use it to dispatch before decoding the full payload.
type Envelope struct {
	Type string `json:"type"`
}
