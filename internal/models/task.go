package models

import "time"

// QuizMode selects the pass policy of a task's quiz.
type QuizMode string

const (
	QuizModeStrict  QuizMode = "strict"  // every question must be correct
	QuizModeLenient QuizMode = "lenient" // score must reach the passing score
)

func (m QuizMode) Valid() bool {
	return m == QuizModeStrict || m == QuizModeLenient
}

// DefaultPassingScore applies to lenient tasks with no configured threshold.
const DefaultPassingScore = 60

type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	QuizMode     QuizMode  `json:"quiz_mode"`
	PassingScore *int      `json:"passing_score,omitempty"`
	CreatedBy    *string   `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// EffectivePassingScore resolves the threshold used for grading.
func (t *Task) EffectivePassingScore(fallback int) int {
	if t.QuizMode == QuizModeStrict {
		return 100
	}
	if t.PassingScore != nil {
		return *t.PassingScore
	}
	return fallback
}

// FileKind distinguishes paged documents from timed media.
type FileKind string

const (
	FileKindDocument FileKind = "document"
	FileKindVideo    FileKind = "video"
)

func (k FileKind) Valid() bool {
	return k == FileKindDocument || k == FileKindVideo
}

type LearningFile struct {
	ID              string   `json:"id"`
	TaskID          string   `json:"task_id"`
	Name            string   `json:"name"`
	Kind            FileKind `json:"kind"`
	TotalPages      int      `json:"total_pages,omitempty"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	SortOrder       int      `json:"sort_order"`
}

// TaskAssignment links a user to a task. IsCompleted only ever moves from
// false to true.
type TaskAssignment struct {
	TaskID         string     `json:"task_id"`
	UserID         string     `json:"user_id"`
	AssignmentType string     `json:"assignment_type"`
	AssignedBy     *string    `json:"assigned_by,omitempty"`
	AssignedAt     time.Time  `json:"assigned_at"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	IsCompleted    bool       `json:"is_completed"`
}

// AssignedTask is an assignment joined with its task, as listed for the assignee.
type AssignedTask struct {
	Task       Task           `json:"task"`
	Assignment TaskAssignment `json:"assignment"`
}

// CompletionFacts are the source facts the completion aggregator derives from.
type CompletionFacts struct {
	TotalFiles           int
	CompletedFiles       int
	QuestionCount        int
	HasPassingSubmission bool
}

// Complete holds when every file is completed and, for tasks with a quiz, a
// passing submission exists.
func (f CompletionFacts) Complete() bool {
	if f.CompletedFiles < f.TotalFiles {
		return false
	}
	if f.QuestionCount > 0 && !f.HasPassingSubmission {
		return false
	}
	return true
}
