package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/lumen/internal/database"
	"github.com/BradenHooton/lumen/internal/models"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository persists the per-username lockout counters.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// Get returns the record for username, or models.ErrNotFound.
func (r *LoginAttemptRepository) Get(ctx context.Context, username string) (*models.LoginAttemptRecord, error) {
	query := `
		SELECT username, failure_count, first_failure_at, locked_until
		FROM login_attempts WHERE username = $1
	`

	var rec models.LoginAttemptRecord
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&rec.Username, &rec.FailureCount, &rec.FirstFailureAt, &rec.LockedUntil,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &rec, nil
}

// Update runs fn against the username's record while holding its row lock, then
// persists whatever fn leaves in the record. A missing record is presented to
// fn with FailureCount 0, so concurrent failures from different instances
// serialize on the same row instead of racing on an insert.
func (r *LoginAttemptRepository) Update(ctx context.Context, username string, now time.Time, fn func(rec *models.LoginAttemptRecord) error) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO login_attempts (username, failure_count, first_failure_at)
			VALUES ($1, 0, $2)
			ON CONFLICT (username) DO NOTHING
		`, username, now)
		if err != nil {
			return fmt.Errorf("failed to seed login attempt row: %w", err)
		}

		var rec models.LoginAttemptRecord
		err = tx.QueryRow(ctx, `
			SELECT username, failure_count, first_failure_at, locked_until
			FROM login_attempts WHERE username = $1
			FOR UPDATE
		`, username).Scan(&rec.Username, &rec.FailureCount, &rec.FirstFailureAt, &rec.LockedUntil)
		if err != nil {
			return database.MapPostgresError(err)
		}

		if err := fn(&rec); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE login_attempts
			SET failure_count = $2, first_failure_at = $3, locked_until = $4
			WHERE username = $1
		`, rec.Username, rec.FailureCount, rec.FirstFailureAt, rec.LockedUntil)
		if err != nil {
			return fmt.Errorf("failed to update login attempt row: %w", err)
		}
		return nil
	})
}

// Delete removes the record; deleting a missing record is not an error.
func (r *LoginAttemptRepository) Delete(ctx context.Context, username string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE username = $1`, username)
	return err
}

// DeleteStale removes records whose lock has expired, or that never locked and
// whose failure window started before staleBefore.
func (r *LoginAttemptRepository) DeleteStale(ctx context.Context, now, staleBefore time.Time) (int64, error) {
	query := `
		DELETE FROM login_attempts
		WHERE (locked_until IS NOT NULL AND locked_until <= $1)
		   OR (locked_until IS NULL AND first_failure_at < $2)
	`
	tag, err := r.db.Pool.Exec(ctx, query, now, staleBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
