package models

import "time"

// FileProgress is a user's consumption state for one learning file.
// EffectiveSeconds only grows; CompletedAt is set once and never cleared.
type FileProgress struct {
	UserID           string     `json:"user_id"`
	FileID           string     `json:"file_id"`
	TaskID           string     `json:"task_id"`
	CurrentPosition  float64    `json:"current_position"`
	TotalExtent      float64    `json:"total_extent"`
	ScrollOffset     *float64   `json:"scroll_offset,omitempty"`
	ProgressPercent  int        `json:"progress_percent"`
	EffectiveSeconds int64      `json:"effective_seconds"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
}

func (p *FileProgress) IsCompleted() bool {
	return p.CompletedAt != nil
}

// NotStartedProgress is the snapshot returned when no row exists yet.
func NotStartedProgress(userID string, file *LearningFile) *FileProgress {
	p := &FileProgress{UserID: userID, FileID: file.ID, TaskID: file.TaskID}
	switch file.Kind {
	case FileKindDocument:
		p.TotalExtent = float64(file.TotalPages)
	case FileKindVideo:
		p.TotalExtent = file.DurationSeconds
	}
	return p
}

// ProgressUpsert carries one report into the store. EffectiveDelta is added to
// the stored total; every other field replaces the stored value.
type ProgressUpsert struct {
	UserID          string
	FileID          string
	TaskID          string
	CurrentPosition float64
	TotalExtent     float64
	ScrollOffset    *float64
	ProgressPercent int
	EffectiveDelta  int64
	ReportedAt      time.Time
}
