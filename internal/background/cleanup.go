package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LockoutPurger removes lockout rows that can no longer affect a login
type LockoutPurger interface {
	PurgeStale(ctx context.Context) (int64, error)
}

// WindowSweeper drops expired in-memory rate limit windows
type WindowSweeper interface {
	Sweep(now time.Time) int
}

// CleanupManager periodically purges stale lockout records and, when the
// in-memory limiter is in use, expired rate limit windows.
type CleanupManager struct {
	lockouts LockoutPurger
	windows  WindowSweeper // nil with the redis limiter
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(lockouts LockoutPurger, windows WindowSweeper, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		lockouts: lockouts,
		windows:  windows,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then once per interval until Stop is
// called or ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.lockouts.PurgeStale(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge stale lockout records", slog.Any("error", err))
	} else if rowsDeleted > 0 {
		cm.logger.Info("stale lockout records purged", slog.Int64("rows_deleted", rowsDeleted))
	}

	if cm.windows != nil {
		if swept := cm.windows.Sweep(cm.now()); swept > 0 {
			cm.logger.Debug("expired rate limit windows swept", slog.Int("windows", swept))
		}
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
