package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/lumen/internal/database"
	"github.com/BradenHooton/lumen/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TaskRepository owns learning tasks, their files and the assignments.
type TaskRepository struct {
	db *database.DB
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, title, description, quiz_mode, passing_score, created_by, created_at`

func scanTask(scanner rowScanner) (*models.Task, error) {
	var t models.Task
	var mode string
	if err := scanner.Scan(&t.ID, &t.Title, &t.Description, &mode, &t.PassingScore, &t.CreatedBy, &t.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	t.QuizMode = models.QuizMode(mode)
	return &t, nil
}

const fileColumns = `id, task_id, name, kind, total_pages, duration_seconds, sort_order`

func scanFile(scanner rowScanner) (*models.LearningFile, error) {
	var f models.LearningFile
	var kind string
	if err := scanner.Scan(&f.ID, &f.TaskID, &f.Name, &kind, &f.TotalPages, &f.DurationSeconds, &f.SortOrder); err != nil {
		return nil, database.MapPostgresError(err)
	}
	f.Kind = models.FileKind(kind)
	return &f, nil
}

const assignmentColumns = `task_id, user_id, assignment_type, assigned_by, assigned_at, submitted_at, is_completed`

func scanAssignment(scanner rowScanner) (*models.TaskAssignment, error) {
	var a models.TaskAssignment
	if err := scanner.Scan(&a.TaskID, &a.UserID, &a.AssignmentType, &a.AssignedBy, &a.AssignedAt, &a.SubmittedAt, &a.IsCompleted); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

// CreateWithContent inserts a task together with its files and questions in
// one transaction. IDs are assigned here.
func (r *TaskRepository) CreateWithContent(ctx context.Context, task *models.Task, files []*models.LearningFile, questions []*models.QuizQuestion) (*models.Task, error) {
	task.ID = uuid.New().String()
	task.CreatedAt = time.Now()
	if task.QuizMode == "" {
		task.QuizMode = models.QuizModeLenient
	}

	var created *models.Task
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = scanTask(tx.QueryRow(ctx, `
			INSERT INTO learning_tasks (id, title, description, quiz_mode, passing_score, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+taskColumns,
			task.ID, task.Title, task.Description, string(task.QuizMode), task.PassingScore, task.CreatedBy, task.CreatedAt,
		))
		if err != nil {
			return err
		}

		for i, f := range files {
			f.ID = uuid.New().String()
			f.TaskID = task.ID
			f.SortOrder = i
			_, err := tx.Exec(ctx, `
				INSERT INTO learning_files (id, task_id, name, kind, total_pages, duration_seconds, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, f.ID, f.TaskID, f.Name, string(f.Kind), f.TotalPages, f.DurationSeconds, f.SortOrder)
			if err != nil {
				return database.MapPostgresError(err)
			}
		}

		for i, q := range questions {
			q.ID = uuid.New().String()
			q.TaskID = task.ID
			q.SortOrder = i
			_, err := tx.Exec(ctx, `
				INSERT INTO quiz_questions (id, task_id, prompt, options, correct_index, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, q.ID, q.TaskID, q.Prompt, q.Options, q.CorrectIndex, q.SortOrder)
			if err != nil {
				return database.MapPostgresError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return scanTask(r.db.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM learning_tasks WHERE id = $1`, taskID))
}

func (r *TaskRepository) GetFile(ctx context.Context, fileID string) (*models.LearningFile, error) {
	return scanFile(r.db.Pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM learning_files WHERE id = $1`, fileID))
}

func (r *TaskRepository) ListFiles(ctx context.Context, taskID string) ([]*models.LearningFile, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+fileColumns+` FROM learning_files WHERE task_id = $1 ORDER BY sort_order`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	files := make([]*models.LearningFile, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Assign creates assignments for userIDs. Existing assignments are left
// untouched, so re-assigning never resets completion. Returns how many rows
// were created.
func (r *TaskRepository) Assign(ctx context.Context, taskID string, userIDs []string, assignmentType string, assignedBy *string) (int64, error) {
	var created int64
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, userID := range userIDs {
			tag, err := tx.Exec(ctx, `
				INSERT INTO task_assignments (task_id, user_id, assignment_type, assigned_by, assigned_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (task_id, user_id) DO NOTHING
			`, taskID, userID, assignmentType, assignedBy, time.Now())
			if err != nil {
				return database.MapPostgresError(err)
			}
			created += tag.RowsAffected()
		}
		return nil
	})
	return created, err
}

func (r *TaskRepository) GetAssignment(ctx context.Context, taskID, userID string) (*models.TaskAssignment, error) {
	return scanAssignment(r.db.Pool.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM task_assignments WHERE task_id = $1 AND user_id = $2`, taskID, userID))
}

func (r *TaskRepository) ListAssignedTasks(ctx context.Context, userID string) ([]*models.AssignedTask, error) {
	query := `
		SELECT t.id, t.title, t.description, t.quiz_mode, t.passing_score, t.created_by, t.created_at,
		       a.task_id, a.user_id, a.assignment_type, a.assigned_by, a.assigned_at, a.submitted_at, a.is_completed
		FROM task_assignments a
		JOIN learning_tasks t ON t.id = a.task_id
		WHERE a.user_id = $1
		ORDER BY a.assigned_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AssignedTask, 0)
	for rows.Next() {
		var at models.AssignedTask
		var mode string
		err := rows.Scan(
			&at.Task.ID, &at.Task.Title, &at.Task.Description, &mode, &at.Task.PassingScore, &at.Task.CreatedBy, &at.Task.CreatedAt,
			&at.Assignment.TaskID, &at.Assignment.UserID, &at.Assignment.AssignmentType, &at.Assignment.AssignedBy,
			&at.Assignment.AssignedAt, &at.Assignment.SubmittedAt, &at.Assignment.IsCompleted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		at.Task.QuizMode = models.QuizMode(mode)
		out = append(out, &at)
	}
	return out, rows.Err()
}

// CompletionFacts gathers the file and quiz facts for (task, user) in one round trip.
func (r *TaskRepository) CompletionFacts(ctx context.Context, taskID, userID string) (models.CompletionFacts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM learning_files WHERE task_id = $1),
			(SELECT COUNT(*) FROM file_progress fp
			   JOIN learning_files f ON f.id = fp.file_id
			  WHERE f.task_id = $1 AND fp.user_id = $2 AND fp.completed_at IS NOT NULL),
			(SELECT COUNT(*) FROM quiz_questions WHERE task_id = $1),
			EXISTS (SELECT 1 FROM quiz_submissions WHERE task_id = $1 AND user_id = $2 AND passed)
	`
	var facts models.CompletionFacts
	err := r.db.Pool.QueryRow(ctx, query, taskID, userID).Scan(
		&facts.TotalFiles, &facts.CompletedFiles, &facts.QuestionCount, &facts.HasPassingSubmission,
	)
	if err != nil {
		return models.CompletionFacts{}, fmt.Errorf("failed to load completion facts: %w", err)
	}
	return facts, nil
}

// MarkCompleted flips is_completed once. It reports false when the assignment
// was already complete or does not exist.
func (r *TaskRepository) MarkCompleted(ctx context.Context, taskID, userID string, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE task_assignments
		SET is_completed = TRUE, submitted_at = $3
		WHERE task_id = $1 AND user_id = $2 AND is_completed = FALSE
	`, taskID, userID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark assignment completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
