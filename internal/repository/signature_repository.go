package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shulepay/approvals-api/internal/models"
)

// SignatureRepository persists captured signature records.
type SignatureRepository struct {
	db *sqlx.DB
}

// NewSignatureRepository constructs the repository.
func NewSignatureRepository(db *sqlx.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// Create inserts a signature record. Records are append-only; nothing
// updates them after insertion.
func (r *SignatureRepository) Create(ctx context.Context, record *models.SignatureRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CapturedAt.IsZero() {
		record.CapturedAt = time.Now().UTC()
	}
	const query = `INSERT INTO signature_records
	(id, signer_id, kind, points, image_key, content_hash, captured_at, captured_ip, user_agent)
	VALUES (:id, :signer_id, :kind, :points, :image_key, :content_hash, :captured_at, :captured_ip, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create signature record: %w", err)
	}
	return nil
}

// GetByID fetches a signature record by identifier.
func (r *SignatureRepository) GetByID(ctx context.Context, id string) (*models.SignatureRecord, error) {
	const query = `SELECT id, signer_id, kind, points, image_key, content_hash, captured_at, captured_ip, user_agent
	FROM signature_records WHERE id = $1`
	var record models.SignatureRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}
