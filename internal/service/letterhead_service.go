package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

const defaultLetterheadMaxBytes = 5 << 20

type letterheadStore interface {
	Create(ctx context.Context, lh *models.Letterhead) error
	GetByID(ctx context.Context, id string) (*models.Letterhead, error)
	GetDefault(ctx context.Context, schoolID string) (*models.Letterhead, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.Letterhead, error)
	SetDefault(ctx context.Context, schoolID, letterheadID string) error
	Delete(ctx context.Context, id string) error
}

type letterheadBlobs interface {
	blobWriter
	Delete(key string) error
}

var letterheadExtensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"application/pdf": "pdf",
}

// LetterheadService manages school letterhead uploads. At most one
// letterhead per school is the default at any time.
type LetterheadService struct {
	repo     letterheadStore
	blobs    letterheadBlobs
	audit    auditLogger
	logger   *zap.Logger
	maxBytes int64
	allowed  map[string]bool
	now      func() time.Time
}

// LetterheadServiceOption configures the service.
type LetterheadServiceOption func(*LetterheadService)

// WithLetterheadLimits overrides the size cap and allowed MIME types.
func WithLetterheadLimits(maxBytes int64, allowedMIMEs []string) LetterheadServiceOption {
	return func(s *LetterheadService) {
		if maxBytes > 0 {
			s.maxBytes = maxBytes
		}
		if len(allowedMIMEs) > 0 {
			s.allowed = make(map[string]bool, len(allowedMIMEs))
			for _, m := range allowedMIMEs {
				s.allowed[strings.ToLower(strings.TrimSpace(m))] = true
			}
		}
	}
}

// NewLetterheadService constructs the service with defaults.
func NewLetterheadService(repo letterheadStore, blobs letterheadBlobs, audit auditLogger, logger *zap.Logger, opts ...LetterheadServiceOption) *LetterheadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LetterheadService{
		repo:     repo,
		blobs:    blobs,
		audit:    audit,
		logger:   logger,
		maxBytes: defaultLetterheadMaxBytes,
		allowed:  map[string]bool{"image/png": true, "image/jpeg": true, "application/pdf": true},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Upload validates and stores a letterhead file for a school.
func (s *LetterheadService) Upload(ctx context.Context, schoolID, actorID string, req dto.UploadLetterheadRequest, contentType string, data []byte) (*models.Letterhead, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !s.allowed[contentType] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "letterhead must be PNG, JPEG or PDF")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("letterhead exceeds the %d MB limit", s.maxBytes>>20))
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "letterhead file is empty")
	}

	lhType := req.Type
	if lhType == "" {
		lhType = models.LetterheadTypeOfficial
	}
	ext := letterheadExtensions[contentType]
	key := path.Join("letterheads", schoolID, fmt.Sprintf("%d.%s", s.now().UnixNano(), ext))
	stored, err := s.blobs.Save(key, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store letterhead")
	}

	lh := &models.Letterhead{
		SchoolID:   schoolID,
		Name:       req.Name,
		Type:       lhType,
		Department: req.Department,
		FileKey:    stored,
		FileType:   contentType,
		FileSize:   int64(len(data)),
		UploadedBy: actorID,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, lh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create letterhead")
	}
	if req.IsDefault {
		if err := s.repo.SetDefault(ctx, schoolID, lh.ID); err != nil {
			s.logger.Warn("failed to set default letterhead", zap.String("letterhead_id", lh.ID), zap.Error(err))
		} else {
			lh.IsDefault = true
		}
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionLetterheadUpload,
		Resource:   "letterhead",
		ResourceID: &lh.ID,
	})
	return lh, nil
}

// SetDefault makes one letterhead the school default, displacing any
// previous default.
func (s *LetterheadService) SetDefault(ctx context.Context, schoolID, letterheadID string) error {
	if err := s.repo.SetDefault(ctx, schoolID, letterheadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "letterhead not found for this school")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set default letterhead")
	}
	return nil
}

// Delete removes a letterhead and its stored file. The current default
// cannot be deleted; pick a new default first.
func (s *LetterheadService) Delete(ctx context.Context, schoolID, id, actorID string) error {
	lh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "letterhead not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load letterhead")
	}
	if lh.SchoolID != schoolID {
		return appErrors.Clone(appErrors.ErrNotFound, "letterhead not found for this school")
	}
	if lh.IsDefault {
		return appErrors.Clone(appErrors.ErrInvalidState, "cannot delete the default letterhead")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "letterhead not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete letterhead")
	}
	if err := s.blobs.Delete(lh.FileKey); err != nil {
		s.logger.Warn("failed to delete letterhead blob", zap.String("file_key", lh.FileKey), zap.Error(err))
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionLetterheadDelete,
		Resource:   "letterhead",
		ResourceID: &id,
	})
	return nil
}

// List returns a school's letterheads.
func (s *LetterheadService) List(ctx context.Context, schoolID string) ([]models.Letterhead, error) {
	list, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list letterheads")
	}
	return list, nil
}

func (s *LetterheadService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
