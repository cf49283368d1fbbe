package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter keeps per-key counters in process.
type MemoryLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu        sync.Mutex
	counters  map[string]*memoryWindow
	lastSweep time.Time
}

// NewMemoryLimiter allows limit requests per key per window.
func NewMemoryLimiter(window time.Duration, limit int) *MemoryLimiter {
	return &MemoryLimiter{
		window:   window,
		limit:    limit,
		now:      time.Now,
		counters: make(map[string]*memoryWindow),
	}
}

// Allow counts a request for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	w, ok := l.counters[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Truncate(l.window).Add(l.window)}
		l.counters[key] = w
	}
	w.count++

	return decide(w.count, l.limit, w.resetAt), nil
}

// sweep drops expired windows at most once per window length.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, w := range l.counters {
		if !now.Before(w.resetAt) {
			delete(l.counters, k)
		}
	}
}
