package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shulepay/approvals-api/internal/models"
)

const letterheadColumns = `id, school_id, name, type, department, file_key, file_type, file_size, is_default, uploaded_by, created_at`

// LetterheadRepository persists school letterheads.
type LetterheadRepository struct {
	db *sqlx.DB
}

// NewLetterheadRepository constructs the repository.
func NewLetterheadRepository(db *sqlx.DB) *LetterheadRepository {
	return &LetterheadRepository{db: db}
}

// Create inserts a new letterhead row.
func (r *LetterheadRepository) Create(ctx context.Context, lh *models.Letterhead) error {
	if lh.ID == "" {
		lh.ID = uuid.NewString()
	}
	if lh.CreatedAt.IsZero() {
		lh.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO letterheads
	(id, school_id, name, type, department, file_key, file_type, file_size, is_default, uploaded_by, created_at)
	VALUES (:id, :school_id, :name, :type, :department, :file_key, :file_type, :file_size, :is_default, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lh); err != nil {
		return fmt.Errorf("create letterhead: %w", err)
	}
	return nil
}

// GetByID fetches a letterhead by identifier.
func (r *LetterheadRepository) GetByID(ctx context.Context, id string) (*models.Letterhead, error) {
	query := fmt.Sprintf(`SELECT %s FROM letterheads WHERE id = $1`, letterheadColumns)
	var lh models.Letterhead
	if err := r.db.GetContext(ctx, &lh, query, id); err != nil {
		return nil, err
	}
	return &lh, nil
}

// GetDefault fetches a school's default letterhead.
func (r *LetterheadRepository) GetDefault(ctx context.Context, schoolID string) (*models.Letterhead, error) {
	query := fmt.Sprintf(`SELECT %s FROM letterheads WHERE school_id = $1 AND is_default = TRUE`, letterheadColumns)
	var lh models.Letterhead
	if err := r.db.GetContext(ctx, &lh, query, schoolID); err != nil {
		return nil, err
	}
	return &lh, nil
}

// ListBySchool returns a school's letterheads, default first.
func (r *LetterheadRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Letterhead, error) {
	query := fmt.Sprintf(`SELECT %s FROM letterheads WHERE school_id = $1 ORDER BY is_default DESC, created_at DESC`, letterheadColumns)
	var list []models.Letterhead
	if err := r.db.SelectContext(ctx, &list, query, schoolID); err != nil {
		return nil, fmt.Errorf("list letterheads: %w", err)
	}
	return list, nil
}

// SetDefault marks one letterhead as the school default, clearing any
// previous default in the same transaction.
func (r *LetterheadRepository) SetDefault(ctx context.Context, schoolID, letterheadID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set default: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE letterheads SET is_default = FALSE WHERE school_id = $1 AND is_default = TRUE`, schoolID); err != nil {
		return fmt.Errorf("clear default letterhead: %w", err)
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE letterheads SET is_default = TRUE WHERE id = $1 AND school_id = $2`, letterheadID, schoolID)
	if err != nil {
		return fmt.Errorf("set default letterhead: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check default letterhead rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// Delete removes a letterhead row.
func (r *LetterheadRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM letterheads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete letterhead: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check letterhead delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
