package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/blockbattle/tetris-server/internal/store"
)

type Deps struct {
	Rooms        RoomLister
	Matches      store.Store
	WS           http.Handler
	HistoryLimit int
	Logger       *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/api", Index)
	r.Get("/api/rooms", ListRooms(d.Rooms, d.Logger))
	r.Get("/api/players/{playerID}/room", PlayerRoom(d.Rooms, d.Logger))
	r.Get("/api/matches", ListMatches(d.Matches, d.HistoryLimit, d.Logger))
	r.Get("/ws/{playerID}", d.WS.ServeHTTP)
	return r
}
