package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/lumen/internal/database"
	"github.com/BradenHooton/lumen/internal/models"
)

// ProgressRepository stores per-(user, file) consumption state.
type ProgressRepository struct {
	db *database.DB
}

func NewProgressRepository(db *database.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `user_id, file_id, task_id, current_position, total_extent, scroll_offset,
	progress_percent, effective_seconds, started_at, completed_at, last_accessed_at`

func scanProgress(scanner rowScanner) (*models.FileProgress, error) {
	var p models.FileProgress
	err := scanner.Scan(
		&p.UserID, &p.FileID, &p.TaskID, &p.CurrentPosition, &p.TotalExtent, &p.ScrollOffset,
		&p.ProgressPercent, &p.EffectiveSeconds, &p.StartedAt, &p.CompletedAt, &p.LastAccessedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &p, nil
}

// upsertProgressSQL is the only write path for file_progress. Position fields
// are last-write-wins, effective_seconds accumulates, completed_at is kept once
// set, and a completed row never reports less than its stored percentage.
const upsertProgressSQL = `
	INSERT INTO file_progress (
		user_id, file_id, task_id, current_position, total_extent, scroll_offset,
		progress_percent, effective_seconds, started_at, completed_at, last_accessed_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
	        CASE WHEN $7 >= 100 THEN $9::timestamptz END, $9)
	ON CONFLICT (user_id, file_id) DO UPDATE SET
		current_position  = EXCLUDED.current_position,
		total_extent      = EXCLUDED.total_extent,
		scroll_offset     = EXCLUDED.scroll_offset,
		progress_percent  = CASE
			WHEN file_progress.completed_at IS NOT NULL
				THEN GREATEST(file_progress.progress_percent, EXCLUDED.progress_percent)
			ELSE EXCLUDED.progress_percent
		END,
		effective_seconds = file_progress.effective_seconds + EXCLUDED.effective_seconds,
		completed_at      = COALESCE(file_progress.completed_at, EXCLUDED.completed_at),
		last_accessed_at  = EXCLUDED.last_accessed_at
	RETURNING ` + progressColumns

// Upsert applies one report atomically and returns the stored row.
func (r *ProgressRepository) Upsert(ctx context.Context, in *models.ProgressUpsert) (*models.FileProgress, error) {
	p, err := scanProgress(r.db.Pool.QueryRow(ctx, upsertProgressSQL,
		in.UserID, in.FileID, in.TaskID, in.CurrentPosition, in.TotalExtent, in.ScrollOffset,
		in.ProgressPercent, in.EffectiveDelta, in.ReportedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert progress: %w", err)
	}
	return p, nil
}

// Get returns the stored progress or models.ErrNotFound.
func (r *ProgressRepository) Get(ctx context.Context, userID, fileID string) (*models.FileProgress, error) {
	return scanProgress(r.db.Pool.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM file_progress WHERE user_id = $1 AND file_id = $2`, userID, fileID))
}

// ListForTask returns the user's stored progress rows for the task's files.
func (r *ProgressRepository) ListForTask(ctx context.Context, userID, taskID string) ([]*models.FileProgress, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+progressColumns+` FROM file_progress WHERE user_id = $1 AND task_id = $2`, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	out := make([]*models.FileProgress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
