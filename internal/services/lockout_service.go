package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
)

// LoginAttemptRepository defines the durable store behind the account lockout
type LoginAttemptRepository interface {
	Get(ctx context.Context, username string) (*models.LoginAttemptRecord, error)
	Update(ctx context.Context, username string, now time.Time, fn func(rec *models.LoginAttemptRecord) error) error
	Delete(ctx context.Context, username string) error
	DeleteStale(ctx context.Context, now, staleBefore time.Time) (int64, error)
}

// LockoutConfig holds the account lockout policy
type LockoutConfig struct {
	MaxFailures   int
	FailureWindow time.Duration
	LockDuration  time.Duration
}

// DefaultLockoutConfig locks an account for 30 minutes after 5 failures within 30 minutes.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailures:   5,
		FailureWindow: 30 * time.Minute,
		LockDuration:  30 * time.Minute,
	}
}

// LockoutService tracks failed logins per normalized username
type LockoutService struct {
	repo   LoginAttemptRepository
	config LockoutConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(repo LoginAttemptRepository, config LockoutConfig, logger *slog.Logger) *LockoutService {
	defaults := DefaultLockoutConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.FailureWindow <= 0 {
		config.FailureWindow = defaults.FailureWindow
	}
	if config.LockDuration <= 0 {
		config.LockDuration = defaults.LockDuration
	}
	return &LockoutService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// IsLocked reports whether username is currently locked.
func (s *LockoutService) IsLocked(ctx context.Context, username string) (bool, error) {
	until, err := s.LockedUntil(ctx, username)
	return until != nil, err
}

// LockedUntil returns when the lock on username ends, or nil when it is not
// locked. An expired lock is deleted on sight so the next failure starts a
// fresh window.
func (s *LockoutService) LockedUntil(ctx context.Context, username string) (*time.Time, error) {
	username = models.NormalizeUsername(username)

	rec, err := s.repo.Get(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load login attempts: %w", err)
	}

	if rec.IsLockedAt(s.now()) {
		return rec.LockedUntil, nil
	}

	if rec.LockedUntil != nil {
		if err := s.repo.Delete(ctx, username); err != nil {
			s.logger.Error("failed to clear expired lock", slog.Any("error", err))
		}
	}
	return nil, nil
}

// LockDuration is how long an account stays locked once the threshold is hit.
func (s *LockoutService) LockDuration() time.Duration {
	return s.config.LockDuration
}

// RecordFailure counts one failed login and reports whether this failure
// moved the account into the locked state.
func (s *LockoutService) RecordFailure(ctx context.Context, username string) (bool, error) {
	username = models.NormalizeUsername(username)
	now := s.now()

	lockedNow := false
	err := s.repo.Update(ctx, username, now, func(rec *models.LoginAttemptRecord) error {
		lockedNow = s.apply(rec, now)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record login failure: %w", err)
	}

	if lockedNow {
		s.logger.Warn("account locked",
			slog.String("username", username),
			slog.Duration("lock_duration", s.config.LockDuration))
	}
	return lockedNow, nil
}

// apply advances rec by one failure at now.
func (s *LockoutService) apply(rec *models.LoginAttemptRecord, now time.Time) bool {
	switch {
	case rec.FailureCount == 0,
		rec.LockedUntil != nil && !now.Before(*rec.LockedUntil),
		rec.LockedUntil == nil && now.Sub(rec.FirstFailureAt) > s.config.FailureWindow:
		rec.FailureCount = 1
		rec.FirstFailureAt = now
		rec.LockedUntil = nil
	default:
		rec.FailureCount++
	}

	if rec.FailureCount >= s.config.MaxFailures && rec.LockedUntil == nil {
		until := now.Add(s.config.LockDuration)
		rec.LockedUntil = &until
		return true
	}
	return false
}

// ResetOnSuccess forgets all failures for username.
func (s *LockoutService) ResetOnSuccess(ctx context.Context, username string) error {
	if err := s.repo.Delete(ctx, models.NormalizeUsername(username)); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

// PurgeStale deletes records whose lock has expired or whose failure window
// has lapsed without a lock.
func (s *LockoutService) PurgeStale(ctx context.Context) (int64, error) {
	now := s.now()
	return s.repo.DeleteStale(ctx, now, now.Add(-s.config.FailureWindow))
}
