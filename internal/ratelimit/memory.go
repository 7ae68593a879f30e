package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryLimiter keeps windows in a map guarded by a mutex. It never blocks
// beyond the lock and holds no state outside the process.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter on the wall clock.
func NewMemoryLimiter() *MemoryLimiter {
	return NewMemoryLimiterWithClock(time.Now)
}

// NewMemoryLimiterWithClock lets tests drive time explicitly.
func NewMemoryLimiterWithClock(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*windowEntry),
		now:     now,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	now := l.now()
	key := windowKey(identifier, limit, window)

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.windowStart) >= window {
		entry = &windowEntry{count: 1, windowStart: now, window: window}
		l.entries[key] = entry
		return evaluate(entry.count, limit, entry.windowStart, window), nil
	}

	entry.count++
	return evaluate(entry.count, limit, entry.windowStart, window), nil
}

func (l *MemoryLimiter) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*windowEntry)
	return nil
}

// Sweep removes windows that have elapsed and returns how many were dropped.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) >= entry.window {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked windows.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
