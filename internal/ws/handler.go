// Package ws serves one WebSocket per player and feeds its messages to the
// dispatcher.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blockbattle/tetris-server/internal/hub"
)

const (
	readLimit    = 1 << 16
	leaveTimeout = 5 * time.Second
)

type Handler struct {
	hub          *hub.Hub
	dispatch     *Dispatcher
	writeTimeout time.Duration
	log          *zap.Logger
}

func NewHandler(h *hub.Hub, d *Dispatcher, writeTimeout time.Duration, log *zap.Logger) *Handler {
	return &Handler{hub: h, dispatch: d, writeTimeout: writeTimeout, log: log}
}

// ServeHTTP upgrades /ws/{playerID}. The player id is chosen by the client;
// a second connection for a connected id is refused.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		http.Error(w, "missing player id", http.StatusBadRequest)
		return
	}

	client, err := h.hub.Register(playerID)
	if errors.Is(err, hub.ErrAlreadyConnected) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}
	defer h.hub.Unregister(client)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browser clients are served from other origins.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Debug("websocket accept failed", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	log := h.log.With(zap.String("player_id", playerID))
	log.Info("player connected")

	session := h.dispatch.Session(playerID)
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), leaveTimeout)
		defer cancel()
		session.Close(ctx)
		log.Info("player disconnected")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine
	go h.writeLoop(ctx, cancel, conn, client, log)

	// Reader loop
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					log.Debug("read failed", zap.Error(err))
				}
			}
			return
		}
		session.Handle(ctx, data)
	}
}

func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *hub.Client, log *zap.Logger) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			_ = conn.Close(websocket.StatusPolicyViolation, "connection too slow")
			return
		case frame := <-c.Outbox():
			wctx, wcancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			wcancel()
			if err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}
