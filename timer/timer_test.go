package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	ticks   []int
	expired int
}

func (r *recorder) tick(ctx context.Context, remaining int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
	return true
}

func (r *recorder) expire(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *recorder) snapshot() ([]int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...), r.expired
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not finish")
	}
}

func TestManager_CountsDownAndExpires(t *testing.T) {
	m := NewManager(time.Millisecond)
	rec := &recorder{}

	h := m.Start(Task{RoomCode: "ABC123", RoundID: 1, Seconds: 3, Tick: rec.tick, Expire: rec.expire})
	waitDone(t, h)

	ticks, expired := rec.snapshot()
	assert.Equal(t, []int{3, 2, 1, 0}, ticks)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, m.Count())
}

func TestManager_TickFalseStopsWithoutExpiring(t *testing.T) {
	m := NewManager(time.Millisecond)
	expired := false

	h := m.Start(Task{
		RoomCode: "ABC123",
		RoundID:  1,
		Seconds:  5,
		Tick:     func(ctx context.Context, remaining int) bool { return remaining > 3 },
		Expire:   func(ctx context.Context) { expired = true },
	})
	waitDone(t, h)

	assert.False(t, expired)
}

func TestManager_StopCancelsPromptly(t *testing.T) {
	m := NewManager(time.Hour)
	rec := &recorder{}

	h := m.Start(Task{RoomCode: "ABC123", RoundID: 7, Seconds: 60, Tick: rec.tick, Expire: rec.expire})
	require.Eventually(t, func() bool {
		ticks, _ := rec.snapshot()
		return len(ticks) == 1
	}, time.Second, time.Millisecond)

	assert.False(t, m.Stop("ABC123", 8), "stop for another round must not cancel")
	assert.True(t, m.Stop("ABC123", 7))
	waitDone(t, h)

	ticks, expired := rec.snapshot()
	assert.Equal(t, []int{60}, ticks)
	assert.Equal(t, 0, expired)
}

func TestManager_StartSupersedesRoomCountdown(t *testing.T) {
	m := NewManager(time.Hour)
	first := &recorder{}
	second := &recorder{}

	h1 := m.Start(Task{RoomCode: "ROOM01", RoundID: 1, Seconds: 60, Tick: first.tick, Expire: first.expire})
	h2 := m.Start(Task{RoomCode: "ROOM01", RoundID: 2, Seconds: 60, Tick: second.tick, Expire: second.expire})
	waitDone(t, h1)

	roundID, ok := m.Running("ROOM01")
	require.True(t, ok)
	assert.Equal(t, uint(2), roundID)

	_, expired := first.snapshot()
	assert.Equal(t, 0, expired)

	m.StopRoom("ROOM01")
	waitDone(t, h2)
	assert.Equal(t, 0, m.Count())
}

func TestManager_RoomsAreIndependent(t *testing.T) {
	m := NewManager(time.Hour)
	h1 := m.Start(Task{RoomCode: "ROOM01", RoundID: 1, Seconds: 60})
	h2 := m.Start(Task{RoomCode: "ROOM02", RoundID: 2, Seconds: 60})
	assert.Equal(t, 2, m.Count())

	m.StopAll()
	waitDone(t, h1)
	waitDone(t, h2)
	assert.Equal(t, 0, m.Count())
}

func TestManager_RecoversFromPanickingHook(t *testing.T) {
	m := NewManager(time.Millisecond)
	h := m.Start(Task{
		RoomCode: "ROOM01",
		RoundID:  1,
		Seconds:  1,
		Tick:     func(ctx context.Context, remaining int) bool { panic("boom") },
	})
	waitDone(t, h)
	assert.Equal(t, 0, m.Count())

	// The manager keeps working for the room.
	rec := &recorder{}
	h = m.Start(Task{RoomCode: "ROOM01", RoundID: 2, Seconds: 0, Tick: rec.tick, Expire: rec.expire})
	waitDone(t, h)
	_, expired := rec.snapshot()
	assert.Equal(t, 1, expired)
}
