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

const certificateColumns = `id, document_id, signature_id, issuer_identity, fingerprint, revoked,
       revoked_reason, issued_at, last_verified_at, usage_count`

// CertificateRepository persists issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a certificate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates
	(id, document_id, signature_id, issuer_identity, fingerprint, revoked, revoked_reason, issued_at, last_verified_at, usage_count)
	VALUES (:id, :document_id, :signature_id, :issuer_identity, :fingerprint, :revoked, :revoked_reason, :issued_at, :last_verified_at, :usage_count)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// GetByID fetches a certificate by identifier.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE id = $1`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// GetByDocument fetches the certificate issued for a document.
func (r *CertificateRepository) GetByDocument(ctx context.Context, documentID string) (*models.Certificate, error) {
	query := fmt.Sprintf(`SELECT %s FROM certificates WHERE document_id = $1 ORDER BY issued_at DESC LIMIT 1`, certificateColumns)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, documentID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// RecordVerification bumps usage tracking after a verification call.
func (r *CertificateRepository) RecordVerification(ctx context.Context, id string, verifiedAt time.Time) error {
	const query = `UPDATE certificates
	SET usage_count = usage_count + 1, last_verified_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, verifiedAt); err != nil {
		return fmt.Errorf("record certificate verification: %w", err)
	}
	return nil
}

// Revoke marks a certificate revoked with a reason.
func (r *CertificateRepository) Revoke(ctx context.Context, id, reason string) error {
	const query = `UPDATE certificates SET revoked = TRUE, revoked_reason = $2 WHERE id = $1 AND revoked = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("revoke certificate: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check revoke rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
