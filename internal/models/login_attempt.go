package models

import "time"

// LoginAttemptRecord is the durable per-username failure counter behind the
// account lockout. A record with FailureCount == 0 is equivalent to no record.
type LoginAttemptRecord struct {
	Username       string     `db:"username"`
	FailureCount   int        `db:"failure_count"`
	FirstFailureAt time.Time  `db:"first_failure_at"`
	LockedUntil    *time.Time `db:"locked_until"`
}

// IsLockedAt reports whether the lock is still in force at now.
func (r *LoginAttemptRecord) IsLockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// AccountLockedError is returned while a lock is in force. It matches
// ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return ErrAccountLocked.Error()
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}

// RetryAfter is the remaining lock time at now, never negative.
func (e *AccountLockedError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
