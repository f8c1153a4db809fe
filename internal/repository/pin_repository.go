package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shulepay/approvals-api/internal/models"
)

// PinRepository persists parent approval PIN credentials.
type PinRepository struct {
	db *sqlx.DB
}

// NewPinRepository constructs the repository.
func NewPinRepository(db *sqlx.DB) *PinRepository {
	return &PinRepository{db: db}
}

// Get fetches the credential owned by a parent.
func (r *PinRepository) Get(ctx context.Context, parentID string) (*models.PinCredential, error) {
	const query = `SELECT parent_id, salt, hash, failed_attempts, locked_until, last_used_at, usage_count, created_at, updated_at
	FROM pin_credentials WHERE parent_id = $1`
	var cred models.PinCredential
	if err := r.db.GetContext(ctx, &cred, query, parentID); err != nil {
		return nil, err
	}
	return &cred, nil
}

// Upsert replaces the credential for a parent, clearing attempts and
// lockout state. Used by SetPin which always overwrites.
func (r *PinRepository) Upsert(ctx context.Context, cred *models.PinCredential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	const query = `INSERT INTO pin_credentials
	(parent_id, salt, hash, failed_attempts, locked_until, last_used_at, usage_count, created_at, updated_at)
	VALUES (:parent_id, :salt, :hash, 0, NULL, :last_used_at, :usage_count, :created_at, :updated_at)
	ON CONFLICT (parent_id) DO UPDATE SET
	salt = EXCLUDED.salt, hash = EXCLUDED.hash, failed_attempts = 0, locked_until = NULL, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cred); err != nil {
		return fmt.Errorf("upsert pin credential: %w", err)
	}
	return nil
}

// RecordFailure atomically increments failed_attempts and, when the
// attempt cap is reached, stamps the lockout in the same statement, so
// two concurrent wrong guesses cannot under-count toward lockout.
// Returns the post-increment attempt count and lockout timestamp.
func (r *PinRepository) RecordFailure(ctx context.Context, parentID string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	const query = `UPDATE pin_credentials
	SET failed_attempts = failed_attempts + 1,
	    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
	    updated_at = NOW()
	WHERE parent_id = $1
	RETURNING failed_attempts, locked_until`
	var row struct {
		FailedAttempts int        `db:"failed_attempts"`
		LockedUntil    *time.Time `db:"locked_until"`
	}
	if err := r.db.GetContext(ctx, &row, query, parentID, maxAttempts, lockUntil); err != nil {
		return 0, nil, fmt.Errorf("record pin failure: %w", err)
	}
	return row.FailedAttempts, row.LockedUntil, nil
}

// RecordSuccess resets attempts and updates usage tracking.
func (r *PinRepository) RecordSuccess(ctx context.Context, parentID string, usedAt time.Time) error {
	const query = `UPDATE pin_credentials
	SET failed_attempts = 0, locked_until = NULL, last_used_at = $2, usage_count = usage_count + 1, updated_at = NOW()
	WHERE parent_id = $1`
	result, err := r.db.ExecContext(ctx, query, parentID, usedAt)
	if err != nil {
		return fmt.Errorf("record pin success: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check pin success rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResetLock clears attempts and lockout without touching the hash.
// Admin-only capability surfaced through the PIN service.
func (r *PinRepository) ResetLock(ctx context.Context, parentID string) error {
	const query = `UPDATE pin_credentials
	SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
	WHERE parent_id = $1`
	result, err := r.db.ExecContext(ctx, query, parentID)
	if err != nil {
		return fmt.Errorf("reset pin lock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check pin reset rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
