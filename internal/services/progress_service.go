package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/BradenHooton/lumen/internal/models"
)

// MaxEffectiveDelta caps the effective time a single report may add.
const MaxEffectiveDelta = 3600

// ProgressRepository defines the interface for file progress storage
type ProgressRepository interface {
	Upsert(ctx context.Context, in *models.ProgressUpsert) (*models.FileProgress, error)
	Get(ctx context.Context, userID, fileID string) (*models.FileProgress, error)
	ListForTask(ctx context.Context, userID, taskID string) ([]*models.FileProgress, error)
}

// FileLookup resolves learning files and the assignments that grant access to them
type FileLookup interface {
	GetFile(ctx context.Context, fileID string) (*models.LearningFile, error)
	GetAssignment(ctx context.Context, taskID, userID string) (*models.TaskAssignment, error)
}

// PositionReport is one progress ping. Documents use CurrentPage/TotalPages
// (and optionally ScrollOffset); videos use CurrentTime/Duration. A zero total
// falls back to the file's own page count or duration.
type PositionReport struct {
	CurrentPage      int
	TotalPages       int
	ScrollOffset     *float64
	CurrentTime      float64
	Duration         float64
	EffectiveSeconds int64
}

// ProgressService records consumption progress per user and file
type ProgressService struct {
	repo       ProgressRepository
	files      FileLookup
	completion *CompletionService
	logger     *slog.Logger
	now        func() time.Time
}

// NewProgressService creates a new ProgressService
func NewProgressService(repo ProgressRepository, files FileLookup, completion *CompletionService, logger *slog.Logger) *ProgressService {
	return &ProgressService{
		repo:       repo,
		files:      files,
		completion: completion,
		logger:     logger,
		now:        time.Now,
	}
}

// Report stores a position report and re-evaluates task completion.
func (s *ProgressService) Report(ctx context.Context, userID, fileID string, report PositionReport) (*models.FileProgress, error) {
	if report.EffectiveSeconds < 0 || report.EffectiveSeconds > MaxEffectiveDelta {
		return nil, models.ErrInvalidInput
	}
	if report.CurrentPage < 0 || report.TotalPages < 0 || report.CurrentTime < 0 || report.Duration < 0 {
		return nil, models.ErrInvalidInput
	}
	if report.ScrollOffset != nil && *report.ScrollOffset < 0 {
		return nil, models.ErrInvalidInput
	}

	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, s.storageError("failed to get file", err)
	}

	if err := s.requireAssignment(ctx, file.TaskID, userID); err != nil {
		return nil, err
	}

	position, total := positionFor(file, report)

	in := &models.ProgressUpsert{
		UserID:          userID,
		FileID:          file.ID,
		TaskID:          file.TaskID,
		CurrentPosition: position,
		TotalExtent:     total,
		ProgressPercent: ProgressPercent(position, total),
		EffectiveDelta:  report.EffectiveSeconds,
		ReportedAt:      s.now(),
	}
	if file.Kind == models.FileKindDocument {
		in.ScrollOffset = report.ScrollOffset
	}

	progress, err := s.repo.Upsert(ctx, in)
	if err != nil {
		return nil, s.storageError("failed to save progress", err)
	}

	if s.completion != nil {
		s.completion.refresh(ctx, userID, file.TaskID)
	}

	return progress, nil
}

// GetProgress returns the stored snapshot, or a not-started snapshot when the
// user has never reported on the file.
func (s *ProgressService) GetProgress(ctx context.Context, userID, fileID string) (*models.FileProgress, error) {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, s.storageError("failed to get file", err)
	}

	if err := s.requireAssignment(ctx, file.TaskID, userID); err != nil {
		return nil, err
	}

	progress, err := s.repo.Get(ctx, userID, fileID)
	if errors.Is(err, models.ErrNotFound) {
		return models.NotStartedProgress(userID, file), nil
	}
	if err != nil {
		return nil, s.storageError("failed to get progress", err)
	}
	return progress, nil
}

// ListForTask returns the user's progress rows for every file of a task they have touched.
func (s *ProgressService) ListForTask(ctx context.Context, userID, taskID string) ([]*models.FileProgress, error) {
	rows, err := s.repo.ListForTask(ctx, userID, taskID)
	if err != nil {
		return nil, s.storageError("failed to list progress", err)
	}
	return rows, nil
}

func (s *ProgressService) requireAssignment(ctx context.Context, taskID, userID string) error {
	if _, err := s.files.GetAssignment(ctx, taskID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotAssigned
		}
		return s.storageError("failed to check assignment", err)
	}
	return nil
}

func (s *ProgressService) storageError(msg string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	s.logger.Error(msg, slog.Any("error", err))
	return models.ErrInternalServer
}

func positionFor(file *models.LearningFile, report PositionReport) (position, total float64) {
	switch file.Kind {
	case models.FileKindVideo:
		total = report.Duration
		if total == 0 {
			total = file.DurationSeconds
		}
		return report.CurrentTime, total
	default:
		total = float64(report.TotalPages)
		if total == 0 {
			total = float64(file.TotalPages)
		}
		return float64(report.CurrentPage), total
	}
}

// ProgressPercent is position/total as a whole percentage clamped to [0, 100].
// An unknown total yields 0. Only a position at or past the end reaches 100.
func ProgressPercent(position, total float64) int {
	if total <= 0 {
		return 0
	}
	if position >= total {
		return 100
	}
	pct := math.Round(position / total * 100)
	switch {
	case pct < 0:
		return 0
	case pct > 99:
		return 99
	default:
		return int(pct)
	}
}
