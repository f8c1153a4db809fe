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

const documentColumns = `id, event_id, student_id, parent_id, type, title, content, content_hash,
       letterhead_id, required_roles, is_finalized, verification_code, artifact_key, artifact_hash,
       created_by, created_at, finalized_at`

// DocumentRepository persists generated documents and their signatures.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new unfinalized document row.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents
	(id, event_id, student_id, parent_id, type, title, content, content_hash, letterhead_id, required_roles, is_finalized, verification_code, artifact_key, artifact_hash, created_by, created_at, finalized_at)
	VALUES (:id, :event_id, :student_id, :parent_id, :type, :title, :content, :content_hash, :letterhead_id, :required_roles, :is_finalized, :verification_code, :artifact_key, :artifact_hash, :created_by, :created_at, :finalized_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByVerificationCode fetches a document by its verification code.
func (r *DocumentRepository) GetByVerificationCode(ctx context.Context, code string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE verification_code = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, code); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CodeExists reports whether a verification code is already in use.
// Generate probes here until it mints an unused code.
func (r *DocumentRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM documents WHERE verification_code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("check verification code: %w", err)
	}
	return exists, nil
}

// AttachSignature links a signature record to the document under a role.
// The unique index on (document_id, role) turns a concurrent duplicate
// into a constraint violation surfaced to the caller.
func (r *DocumentRepository) AttachSignature(ctx context.Context, sig *models.DocumentSignature) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.SignedAt.IsZero() {
		sig.SignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_signatures (id, document_id, signature_id, role, signed_at)
	VALUES (:id, :document_id, :signature_id, :role, :signed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sig); err != nil {
		return fmt.Errorf("attach document signature: %w", err)
	}
	return nil
}

// ListSignatures returns the signatures attached to a document.
func (r *DocumentRepository) ListSignatures(ctx context.Context, documentID string) ([]models.DocumentSignature, error) {
	const query = `SELECT id, document_id, signature_id, role, signed_at
	FROM document_signatures WHERE document_id = $1 ORDER BY signed_at`
	var sigs []models.DocumentSignature
	if err := r.db.SelectContext(ctx, &sigs, query, documentID); err != nil {
		return nil, fmt.Errorf("list document signatures: %w", err)
	}
	return sigs, nil
}

// RoleSigned reports whether the role already has an attached signature.
func (r *DocumentRepository) RoleSigned(ctx context.Context, documentID string, role models.SignatureRole) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM document_signatures WHERE document_id = $1 AND role = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, documentID, role); err != nil {
		return false, fmt.Errorf("check document role signature: %w", err)
	}
	return exists, nil
}

// Finalize marks the document finalized and stores the artifact
// reference. Guarded by is_finalized = FALSE so exactly one concurrent
// caller performs the rendering side effect; the loser sees
// sql.ErrNoRows and serves the stored artifact instead.
func (r *DocumentRepository) Finalize(ctx context.Context, id, artifactKey, artifactHash string, finalizedAt time.Time) error {
	const query = `UPDATE documents
	SET is_finalized = TRUE, artifact_key = $2, artifact_hash = $3, finalized_at = $4
	WHERE id = $1 AND is_finalized = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, artifactKey, artifactHash, finalizedAt)
	if err != nil {
		return fmt.Errorf("finalize document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check finalize rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
