// Package hub maps connected player ids to their outbound queues.
package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrAlreadyConnected = errors.New("player already connected")

// Client is one connected player's outbound side. Frames are delivered in
// the order they were queued.
type Client struct {
	ID   string
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// Outbox yields encoded frames for the connection's writer.
func (c *Client) Outbox() <-chan []byte { return c.out }

// Done is closed once the client has been dropped or unregistered.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub is safe for concurrent use by connection handlers, room actors and
// tick broadcasters.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
	log     *zap.Logger
}

func New(buffer int, log *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		clients: make(map[string]*Client),
		buffer:  buffer,
		log:     log,
	}
}

// Register claims id for a new connection.
func (h *Hub) Register(id string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		return nil, ErrAlreadyConnected
	}
	c := &Client{
		ID:   id,
		out:  make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	h.clients[id] = c
	return c, nil
}

// Unregister releases id if c still owns it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c.ID] == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) Connected(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send encodes msg and queues it for id. It never blocks: a client whose
// queue is full is dropped. It reports whether the frame was queued.
func (h *Hub) Send(id string, msg any) bool {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode outbound message", zap.String("player_id", id), zap.Error(err))
		return false
	}
	return h.sendFrame(id, frame)
}

// Broadcast encodes msg once and queues it for every id, in order.
func (h *Hub) Broadcast(ids []string, msg any) {
	if len(ids) == 0 {
		return
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("encode broadcast message", zap.Error(err))
		return
	}
	for _, id := range ids {
		h.sendFrame(id, frame)
	}
}

func (h *Hub) sendFrame(id string, frame []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	if !ok {
		h.mu.RUnlock()
		return false
	}
	select {
	case <-c.done:
		h.mu.RUnlock()
		return false
	case c.out <- frame:
		h.mu.RUnlock()
		return true
	default:
	}
	h.mu.RUnlock()

	h.log.Warn("dropping slow client", zap.String("player_id", id))
	h.Unregister(c)
	return false
}
