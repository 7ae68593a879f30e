package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
	pkglogger "github.com/BradenHooton/lumen/pkg/logger"
)

// CompletionRepository exposes the facts task completion is derived from
type CompletionRepository interface {
	CompletionFacts(ctx context.Context, taskID, userID string) (models.CompletionFacts, error)
	MarkCompleted(ctx context.Context, taskID, userID string, at time.Time) (bool, error)
}

// CompletionService derives task completion from file progress and quiz results
type CompletionService struct {
	repo        CompletionRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewCompletionService creates a new CompletionService
func NewCompletionService(repo CompletionRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *CompletionService {
	return &CompletionService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// IsTaskComplete holds when every file of the task is completed by the user
// and, if the task has questions, the user has a passing submission.
func (s *CompletionService) IsTaskComplete(ctx context.Context, userID, taskID string) (bool, error) {
	facts, err := s.repo.CompletionFacts(ctx, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate completion: %w", err)
	}
	return facts.Complete(), nil
}

// MarkCompletedIfEligible flips the assignment to completed when the task is
// complete. It reports true only for the call that made the transition.
func (s *CompletionService) MarkCompletedIfEligible(ctx context.Context, userID, taskID string) (bool, error) {
	complete, err := s.IsTaskComplete(ctx, userID, taskID)
	if err != nil || !complete {
		return false, err
	}

	changed, err := s.repo.MarkCompleted(ctx, taskID, userID, s.now())
	if err != nil {
		return false, err
	}

	if changed {
		s.logger.Info("task completed", slog.String("user_id", userID), slog.String("task_id", taskID))
		s.auditLogger.LogLearningEvent(pkglogger.LearningEvent{
			EventType: "task_completed",
			UserID:    userID,
			TaskID:    taskID,
		})
	}
	return changed, nil
}

// refresh re-evaluates completion after a write the caller has already
// committed. Failures are logged, since completion can be recomputed later.
func (s *CompletionService) refresh(ctx context.Context, userID, taskID string) {
	if _, err := s.MarkCompletedIfEligible(ctx, userID, taskID); err != nil {
		s.logger.Error("failed to update task completion",
			slog.String("user_id", userID),
			slog.String("task_id", taskID),
			slog.Any("error", err))
	}
}
