// Package ratelimit implements the sliding-window request counter that guards
// the credential endpoints.
//
// A window opens on the first request for a key and lasts a fixed duration;
// the counter resets once the window has elapsed rather than on calendar
// boundaries. Keys are the tuple (identifier, limit, window), so one client can
// be close to its login limit while far from its registration limit.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of a single Check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts requests per (identifier, limit, window).
//
// MemoryLimiter is process-local; RedisLimiter shares state across instances.
type Limiter interface {
	Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error)
	// Reset drops every tracked window.
	Reset(ctx context.Context) error
}

func windowKey(identifier string, limit int, window time.Duration) string {
	return fmt.Sprintf("%s|%d|%d", identifier, limit, window.Milliseconds())
}

// evaluate applies the counting rule to a window that already includes the
// current request.
func evaluate(count, limit int, windowStart time.Time, window time.Duration) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   windowStart.Add(window),
	}
}
