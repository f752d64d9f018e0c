package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockbattle/tetris-server/pkg/types"
)

func recvTick(t *testing.T, ch <-chan any) types.GameTick {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case m := <-ch:
			if tick, ok := m.(types.GameTick); ok {
				return tick
			}
		case <-deadline:
			t.Fatalf("timed out waiting for tick")
			return types.GameTick{}
		}
	}
}

func TestTicker_CountsUpAndStops(t *testing.T) {
	out := newFakeSender()
	tk := StartTicker(context.Background(), 2*time.Millisecond, out, func() []string { return []string{"a", "b"} })

	first := recvTick(t, out.box("a"))
	second := recvTick(t, out.box("a"))
	assert.Equal(t, uint64(1), first.Tick)
	assert.Equal(t, uint64(2), second.Tick)
	assert.GreaterOrEqual(t, second.Timestamp, first.Timestamp)
	assert.Equal(t, uint64(1), recvTick(t, out.box("b")).Tick)

	tk.Stop()
	tk.Stop()
	n := tk.Tick()
	recvNone(t, drainTicks(out.box("a")), 20*time.Millisecond)
	assert.Equal(t, n, tk.Tick())
}

// drainTicks empties ch and returns it.
func drainTicks(ch chan any) <-chan any {
	for {
		select {
		case <-ch:
		default:
			return ch
		}
	}
}

func TestTicker_StopsWithParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tk := StartTicker(ctx, time.Millisecond, newFakeSender(), func() []string { return nil })
	cancel()

	select {
	case <-tk.done:
	case <-time.After(within):
		t.Fatal("ticker kept running after parent cancel")
	}
	tk.Stop()
}

func TestRoom_TicksOnlyWhileActive(t *testing.T) {
	tr := newTestRoom(t, Config{MaxPlayers: 1, TickInterval: 2 * time.Millisecond}, nil)
	recvNone(t, tr.inbox("a"), 20*time.Millisecond)

	tr.start(t)
	tick := recvTick(t, tr.inbox("a"))
	require.Equal(t, uint64(1), tick.Tick)
	assert.Equal(t, uint64(2), recvTick(t, tr.inbox("a")).Tick)

	tr.Send(GameOver{PlayerID: "a"})
	recvUntil[types.GameEnd](t, tr.inbox("a"))
	recvView(t, tr.Room)
	recvNone(t, drainTicks(tr.out.box("a")), 20*time.Millisecond)
}
