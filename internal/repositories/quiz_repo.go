package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/lumen/internal/database"
	"github.com/BradenHooton/lumen/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// QuizRepository stores questions, single answers and batch submissions.
type QuizRepository struct {
	db *database.DB
}

func NewQuizRepository(db *database.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

const questionColumns = `id, task_id, prompt, options, correct_index, sort_order`

func scanQuestion(scanner rowScanner) (*models.QuizQuestion, error) {
	var q models.QuizQuestion
	if err := scanner.Scan(&q.ID, &q.TaskID, &q.Prompt, &q.Options, &q.CorrectIndex, &q.SortOrder); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &q, nil
}

const submissionColumns = `id, task_id, user_id, score, passed, total_questions, correct_count, attempt_number, submitted_at`

func scanSubmission(scanner rowScanner) (*models.QuizSubmission, error) {
	var s models.QuizSubmission
	err := scanner.Scan(&s.ID, &s.TaskID, &s.UserID, &s.Score, &s.Passed,
		&s.TotalQuestions, &s.CorrectCount, &s.AttemptNumber, &s.SubmittedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

func (r *QuizRepository) GetQuestion(ctx context.Context, questionID string) (*models.QuizQuestion, error) {
	return scanQuestion(r.db.Pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM quiz_questions WHERE id = $1`, questionID))
}

func (r *QuizRepository) ListQuestions(ctx context.Context, taskID string) ([]*models.QuizQuestion, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+questionColumns+` FROM quiz_questions WHERE task_id = $1 ORDER BY sort_order`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.QuizQuestion, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// InsertAnswer stores the first answer for (user, question). A second answer
// is rejected with models.ErrAlreadyAnswered and the stored row is unchanged.
func (r *QuizRepository) InsertAnswer(ctx context.Context, answer *models.QuizAnswer) error {
	tag, err := r.db.Pool.Exec(ctx, `
		INSERT INTO quiz_answers (user_id, question_id, chosen_index, is_correct, answered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, question_id) DO NOTHING
	`, answer.UserID, answer.QuestionID, answer.ChosenIndex, answer.IsCorrect, answer.AnsweredAt)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAlreadyAnswered
	}
	return nil
}

func (r *QuizRepository) GetAnswer(ctx context.Context, userID, questionID string) (*models.QuizAnswer, error) {
	var a models.QuizAnswer
	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, question_id, chosen_index, is_correct, answered_at
		FROM quiz_answers WHERE user_id = $1 AND question_id = $2
	`, userID, questionID).Scan(&a.UserID, &a.QuestionID, &a.ChosenIndex, &a.IsCorrect, &a.AnsweredAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func (r *QuizRepository) ListSubmissions(ctx context.Context, taskID, userID string) ([]*models.QuizSubmission, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+submissionColumns+` FROM quiz_submissions
		WHERE task_id = $1 AND user_id = $2
		ORDER BY attempt_number
	`, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.QuizSubmission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordSubmission appends a graded attempt. The assignment row is locked for
// the duration of the transaction, so the pass check, the attempt count and the
// insert see one consistent snapshot even when the same user submits twice at
// once.
func (r *QuizRepository) RecordSubmission(ctx context.Context, sub *models.QuizSubmission, maxAttempts int) (*models.QuizSubmission, error) {
	var stored *models.QuizSubmission
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var locked int
		err := tx.QueryRow(ctx, `
			SELECT 1 FROM task_assignments
			WHERE task_id = $1 AND user_id = $2
			FOR UPDATE
		`, sub.TaskID, sub.UserID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotAssigned
		}
		if err != nil {
			return fmt.Errorf("failed to lock assignment: %w", err)
		}

		var prior int
		var passed bool
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(BOOL_OR(passed), FALSE)
			FROM quiz_submissions WHERE task_id = $1 AND user_id = $2
		`, sub.TaskID, sub.UserID).Scan(&prior, &passed)
		if err != nil {
			return fmt.Errorf("failed to count submissions: %w", err)
		}

		if passed {
			return models.ErrAlreadyPassed
		}
		if prior >= maxAttempts {
			return models.ErrAttemptsExhausted
		}

		sub.ID = uuid.New().String()
		sub.AttemptNumber = prior + 1
		if sub.SubmittedAt.IsZero() {
			sub.SubmittedAt = time.Now()
		}

		stored, err = scanSubmission(tx.QueryRow(ctx, `
			INSERT INTO quiz_submissions (id, task_id, user_id, score, passed, total_questions, correct_count, attempt_number, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+submissionColumns,
			sub.ID, sub.TaskID, sub.UserID, sub.Score, sub.Passed, sub.TotalQuestions, sub.CorrectCount, sub.AttemptNumber, sub.SubmittedAt,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}
