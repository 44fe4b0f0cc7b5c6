package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memWindow struct {
	start  time.Time
	window time.Duration
	count  int64
}

type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]memWindow
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: map[string]memWindow{}, now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (Decision, error) {
	if !rule.Enabled() {
		return Decision{Allowed: true}, nil
	}
	now := l.now()
	start := windowStart(now, rule.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now, rule.Window)
	w := l.windows[key]
	if !w.start.Equal(start) {
		w = memWindow{start: start, window: rule.Window}
	}
	w.count++
	l.windows[key] = w
	return decide(w.count, rule, now), nil
}

// sweep runs at most once per caller window and drops entries older than
// twice their own window. Callers hold mu.
func (l *MemoryLimiter) sweep(now time.Time, every time.Duration) {
	if now.Sub(l.lastSweep) < every {
		return
	}
	l.lastSweep = now
	for k, w := range l.windows {
		if now.Sub(w.start) > 2*w.window {
			delete(l.windows, k)
		}
	}
}
