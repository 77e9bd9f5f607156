// timer/timer.go
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/thiefhunt/logger"
)

const DefaultSeconds = 60

// Task is one round countdown. Tick is called with Seconds, Seconds-1, ...
// 0, one call per interval; returning false ends the countdown. After the
// tick for 0, Expire is called. Both receive the countdown's context, which
// is cancelled once the countdown is stopped or superseded.
type Task struct {
	RoomCode string
	RoundID  uint
	Seconds  int
	Tick     func(ctx context.Context, remaining int) bool
	Expire   func(ctx context.Context)
}

// Handle controls one running countdown.
type Handle struct {
	roomCode string
	roundID  uint
	cancel   context.CancelFunc
	done     chan struct{}
}

func (h *Handle) RoundID() uint { return h.roundID }

// Cancel stops the countdown without waiting for it to exit.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the countdown goroutine has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Manager owns at most one countdown per room.
type Manager struct {
	interval time.Duration
	tasks    map[string]*Handle
	mutex    sync.Mutex
	wg       sync.WaitGroup
}

// NewManager creates a manager ticking once per interval (one second in
// production).
func NewManager(interval time.Duration) *Manager {
	if interval <= 0 {
		interval = time.Second
	}
	return &Manager{
		interval: interval,
		tasks:    make(map[string]*Handle),
	}
}

// Start cancels whatever countdown the room already runs and starts task.
func (m *Manager) Start(task Task) *Handle {
	if task.Seconds < 0 {
		task.Seconds = DefaultSeconds
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		roomCode: task.RoomCode,
		roundID:  task.RoundID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.mutex.Lock()
	if prev, ok := m.tasks[task.RoomCode]; ok {
		prev.cancel()
	}
	m.tasks[task.RoomCode] = h
	m.wg.Add(1)
	m.mutex.Unlock()

	go m.run(ctx, h, task)
	return h
}

func (m *Manager) run(ctx context.Context, h *Handle, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Countdown for round %d in room %s crashed: %v", task.RoundID, task.RoomCode, r)
		}
		m.release(h)
		close(h.done)
		m.wg.Done()
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for remaining := task.Seconds; remaining >= 0; remaining-- {
		if ctx.Err() != nil {
			return
		}
		if task.Tick != nil && !task.Tick(ctx, remaining) {
			return
		}
		if remaining == 0 {
			if ctx.Err() == nil && task.Expire != nil {
				task.Expire(ctx)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) release(h *Handle) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.tasks[h.roomCode] == h {
		delete(m.tasks, h.roomCode)
	}
	h.cancel()
}

// Stop cancels the room's countdown if it belongs to roundID.
func (m *Manager) Stop(roomCode string, roundID uint) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	h, ok := m.tasks[roomCode]
	if !ok || h.roundID != roundID {
		return false
	}
	h.cancel()
	delete(m.tasks, roomCode)
	return true
}

// StopRoom cancels whatever countdown the room runs.
func (m *Manager) StopRoom(roomCode string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if h, ok := m.tasks[roomCode]; ok {
		h.cancel()
		delete(m.tasks, roomCode)
	}
}

// StopAll cancels every countdown and waits for them to exit.
func (m *Manager) StopAll() {
	m.mutex.Lock()
	for code, h := range m.tasks {
		h.cancel()
		delete(m.tasks, code)
	}
	m.mutex.Unlock()
	m.wg.Wait()
}

// Running reports the round the room's countdown belongs to.
func (m *Manager) Running(roomCode string) (uint, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	h, ok := m.tasks[roomCode]
	if !ok {
		return 0, false
	}
	return h.roundID, true
}

// Count returns the number of running countdowns.
func (m *Manager) Count() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.tasks)
}
