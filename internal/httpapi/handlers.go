package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blockbattle/tetris-server/internal/room"
	"github.com/blockbattle/tetris-server/internal/store"
	"github.com/blockbattle/tetris-server/pkg/types"
)

// RoomLister is the registry query surface behind /api/rooms and
// /api/players.
type RoomLister interface {
	List(ctx context.Context) ([]types.RoomInfo, error)
	RoomOf(ctx context.Context, playerID string) (*room.Room, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "Tetris Multiplayer Server"})
}

// ListRooms serves the same joinable-room view as the room_list message.
func ListRooms(rooms RoomLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rooms.List(r.Context())
		if err != nil {
			log.Warn("list rooms", zap.Error(err))
			http.Error(w, "rooms unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Rooms []types.RoomInfo `json:"rooms"`
		}{Rooms: list})
	}
}

// PlayerRoom reports the room a player is currently bound to.
func PlayerRoom(rooms RoomLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm, err := rooms.RoomOf(r.Context(), chi.URLParam(r, "playerID"))
		if err != nil {
			log.Warn("locate player", zap.Error(err))
			http.Error(w, "rooms unavailable", http.StatusServiceUnavailable)
			return
		}
		if rm == nil {
			http.Error(w, "player is not in a room", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, types.RoomMessage{Type: types.MsgRoomUpdate, Room: rm.Info()})
	}
}

// ListMatches returns the newest finished matches; ?limit caps the count at
// maxLimit.
func ListMatches(st store.Store, maxLimit int, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := maxLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxLimit)
		}
		matches, err := st.Recent(r.Context(), limit)
		if err != nil {
			log.Warn("list matches", zap.Error(err))
			http.Error(w, "history unavailable", http.StatusServiceUnavailable)
			return
		}
		if matches == nil {
			matches = []store.MatchResult{}
		}
		writeJSON(w, http.StatusOK, struct {
			Matches []store.MatchResult `json:"matches"`
		}{Matches: matches})
	}
}
