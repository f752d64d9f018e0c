package room

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockbattle/tetris-server/pkg/types"
)

// Ticker emits game_tick to a room's roster at a fixed interval. The timer
// is re-armed after each emission, so a slow broadcast delays the next tick
// rather than piling ticks up.
type Ticker struct {
	interval time.Duration
	out      Sender
	roster   func() []string
	tick     atomic.Uint64
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// StartTicker begins ticking until Stop is called or parent is cancelled.
func StartTicker(parent context.Context, interval time.Duration, out Sender, roster func() []string) *Ticker {
	ctx, cancel := context.WithCancel(parent)
	t := &Ticker{
		interval: interval,
		out:      out,
		roster:   roster,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go t.run(ctx)
	return t
}

func (t *Ticker) run(ctx context.Context) {
	defer close(t.done)
	timer := time.NewTimer(t.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		n := t.tick.Add(1)
		t.out.Broadcast(t.roster(), types.GameTick{
			Type:      types.MsgGameTick,
			Tick:      n,
			Timestamp: time.Now().UnixMilli(),
		})
		timer.Reset(t.interval)
	}
}

// Tick is the number of ticks emitted so far.
func (t *Ticker) Tick() uint64 { return t.tick.Load() }

// Stop halts the ticker and waits for its goroutine; no tick is emitted
// after Stop returns. Safe to call more than once.
func (t *Ticker) Stop() {
	t.once.Do(func() {
		t.cancel()
		<-t.done
	})
}
