package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = 256

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per key: maxAttempts tokens refilled evenly
// over window. It is local to the process.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxAttempts int
	window      time.Duration
	hits        int
	now         func() time.Time
}

func NewMemory(maxAttempts int, window time.Duration) *Memory {
	return &Memory{
		entries:     make(map[string]*entry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

func (m *Memory) Hit(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.hits++
	if m.hits%sweepEvery == 0 {
		m.sweep(now)
	}

	e, ok := m.entries[key]
	if !ok {
		every := m.window / time.Duration(m.maxAttempts)
		e = &entry{limiter: rate.NewLimiter(rate.Every(every), m.maxAttempts)}
		m.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, m.window, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// sweep drops buckets idle for a full window; they would be full again.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) >= m.window {
			delete(m.entries, k)
		}
	}
}
