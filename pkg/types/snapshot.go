package types

// PlayerInfo is one roster entry in a RoomInfo.
type PlayerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// RoomInfo is the lobby view of a room, sent in room_list, room_joined and
// room_update.
type RoomInfo struct {
	RoomID      string       `json:"room_id"`
	RoomName    string       `json:"room_name"`
	HostID      string       `json:"host_id"`
	PlayerCount int          `json:"player_count"`
	MaxPlayers  int          `json:"max_players"`
	GameActive  bool         `json:"game_active"`
	ItemMode    bool         `json:"item_mode"`
	State       string       `json:"state"`
	Players     []PlayerInfo `json:"players"`
}

// Joinable reports whether the room shows up in room listings.
func (r RoomInfo) Joinable() bool {
	return !r.GameActive && r.PlayerCount < r.MaxPlayers
}

type PlayerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
	Ready bool   `json:"ready"`
}

// PlayerGameState is the last-known board report of one player.
type PlayerGameState struct {
	Grid         [][]int `json:"grid"`
	Score        int     `json:"score"`
	Level        int     `json:"level"`
	LinesCleared int     `json:"lines_cleared"`
	Combo        int     `json:"combo"`
	GameOver     bool    `json:"game_over"`
}

// GameState is the aggregated match view broadcast to a room.
type GameState struct {
	Players       []PlayerSummary            `json:"players"`
	GameActive    bool                       `json:"game_active"`
	GameStates    map[string]PlayerGameState `json:"game_states"`
	TargetingInfo map[string]string          `json:"targeting_info,omitempty"`
}
