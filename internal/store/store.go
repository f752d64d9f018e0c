// Package store archives finished matches. Rooms themselves are never
// persisted.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("store closed")

// MatchResult is one finished match.
type MatchResult struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	RoomID      string    `gorm:"size:36;index" json:"room_id"`
	RoomName    string    `gorm:"size:64" json:"room_name"`
	WinnerID    string    `gorm:"size:64" json:"winner_id"`
	WinnerName  string    `gorm:"size:64" json:"winner_name"`
	WinnerScore int       `json:"winner_score"`
	Reason      string    `gorm:"size:32" json:"reason"`
	PlayerCount int       `json:"player_count"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `gorm:"index" json:"ended_at"`
}

// Store is where rooms hand finished matches.
type Store interface {
	Record(ctx context.Context, res MatchResult) error
	Recent(ctx context.Context, limit int) ([]MatchResult, error)
	Close() error
}

func prepare(res *MatchResult) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.EndedAt.IsZero() {
		res.EndedAt = time.Now()
	}
}

// MemoryStore keeps the newest results up to a fixed capacity.
type MemoryStore struct {
	mu      sync.RWMutex
	results []MatchResult // newest first
	limit   int
	closed  bool
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryStore{limit: limit}
}

func (m *MemoryStore) Record(_ context.Context, res MatchResult) error {
	prepare(&res)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.results = append([]MatchResult{res}, m.results...)
	if len(m.results) > m.limit {
		m.results = m.results[:m.limit]
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]MatchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if limit <= 0 || limit > len(m.results) {
		limit = len(m.results)
	}
	return append([]MatchResult(nil), m.results[:limit]...), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
