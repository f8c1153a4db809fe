package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

type certificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	GetByDocument(ctx context.Context, documentID string) (*models.Certificate, error)
	RecordVerification(ctx context.Context, id string, verifiedAt time.Time) error
	Revoke(ctx context.Context, id, reason string) error
}

// CertificateService binds a signature to a finalized document with a
// tamper-evident fingerprint.
type CertificateService struct {
	repo   certificateStore
	docs   documentStore
	sigs   signatureReader
	audit  auditLogger
	logger *zap.Logger
	now    func() time.Time
}

// CertificateServiceOption configures the service.
type CertificateServiceOption func(*CertificateService)

// WithCertificateClock overrides the time source.
func WithCertificateClock(now func() time.Time) CertificateServiceOption {
	return func(s *CertificateService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCertificateService constructs the service with defaults.
func NewCertificateService(repo certificateStore, docs documentStore, sigs signatureReader, audit auditLogger, logger *zap.Logger, opts ...CertificateServiceOption) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CertificateService{
		repo:   repo,
		docs:   docs,
		sigs:   sigs,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Issue creates a certificate for a signature attached to a finalized
// document. The fingerprint covers the document content hash, the
// signature content hash and the issuer identity.
func (s *CertificateService) Issue(ctx context.Context, documentID, signatureID, issuerIdentity string) (*models.Certificate, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if !doc.IsFinalized {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "document is not finalized")
	}
	attached, err := s.docs.ListSignatures(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list signatures")
	}
	found := false
	for _, link := range attached {
		if link.SignatureID == signatureID {
			found = true
			break
		}
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "signature is not attached to this document")
	}
	record, err := s.sigs.GetByID(ctx, signatureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "signature not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signature")
	}

	cert := &models.Certificate{
		DocumentID:     documentID,
		SignatureID:    signatureID,
		IssuerIdentity: issuerIdentity,
		Fingerprint:    fingerprint(doc.ContentHash, record.ContentHash, issuerIdentity),
		IssuedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &issuerIdentity,
		Action:     models.AuditActionCertificateIssue,
		Resource:   "certificate",
		ResourceID: &cert.ID,
	})
	return cert, nil
}

// Verify recomputes the fingerprint from the current document and
// signature state. Mismatch or revocation reports Tampered.
func (s *CertificateService) Verify(ctx context.Context, cert *models.Certificate) error {
	if cert.Revoked {
		return appErrors.Clone(appErrors.ErrTampered, "certificate has been revoked")
	}
	doc, err := s.docs.GetByID(ctx, cert.DocumentID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrTampered, "certificate document is missing")
	}
	record, err := s.sigs.GetByID(ctx, cert.SignatureID)
	if err != nil {
		return appErrors.Clone(appErrors.ErrTampered, "certificate signature is missing")
	}
	if fingerprint(doc.ContentHash, record.ContentHash, cert.IssuerIdentity) != cert.Fingerprint {
		return appErrors.ErrTampered
	}
	if err := s.repo.RecordVerification(ctx, cert.ID, s.now()); err != nil {
		s.logger.Warn("failed to record certificate verification", zap.String("certificate_id", cert.ID), zap.Error(err))
	}
	return nil
}

// VerifyByCode is the public verification entry point: resolves the
// document by its verification code and checks its certificate.
func (s *CertificateService) VerifyByCode(ctx context.Context, code string) (*dto.VerifyResponse, error) {
	doc, err := s.docs.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.VerifyResponse{Valid: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	cert, err := s.repo.GetByDocument(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.VerifyResponse{Valid: false, DocumentID: doc.ID, VerificationCode: doc.VerificationCode}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	resp := &dto.VerifyResponse{
		DocumentID:       doc.ID,
		VerificationCode: doc.VerificationCode,
		IssuedAt:         &cert.IssuedAt,
		Revoked:          cert.Revoked,
	}
	if err := s.Verify(ctx, cert); err != nil {
		return resp, nil
	}
	resp.Valid = true
	return resp, nil
}

// Revoke marks a certificate invalid. Admin capability; one-way.
func (s *CertificateService) Revoke(ctx context.Context, id, reason, actorID string) error {
	if err := s.repo.Revoke(ctx, id, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "certificate is missing or already revoked")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke certificate")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCertRevoke,
		Resource:   "certificate",
		ResourceID: &id,
	})
	return nil
}

func (s *CertificateService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func fingerprint(documentHash, signatureHash, issuer string) string {
	sum := sha256.Sum256([]byte(documentHash + "|" + signatureHash + "|" + issuer))
	return hex.EncodeToString(sum[:])
}
