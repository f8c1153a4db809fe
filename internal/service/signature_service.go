package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"go.uber.org/zap"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

type signatureStore interface {
	Create(ctx context.Context, record *models.SignatureRecord) error
	GetByID(ctx context.Context, id string) (*models.SignatureRecord, error)
}

type blobWriter interface {
	Save(key string, data []byte) (string, error)
}

// CaptureMeta stamps the capture with the caller's network identity.
type CaptureMeta struct {
	IPAddress string
	UserAgent string
}

// SignatureService records verifiable signature captures. A capture is
// immutable once stored; its content hash lets later verification
// detect tampering.
type SignatureService struct {
	repo   signatureStore
	blobs  blobWriter
	logger *zap.Logger
	now    func() time.Time
}

// SignatureServiceOption configures the service.
type SignatureServiceOption func(*SignatureService)

// WithSignatureClock overrides the time source.
func WithSignatureClock(now func() time.Time) SignatureServiceOption {
	return func(s *SignatureService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSignatureService constructs the service with defaults.
func NewSignatureService(repo signatureStore, blobs blobWriter, logger *zap.Logger, opts ...SignatureServiceOption) *SignatureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SignatureService{
		repo:   repo,
		blobs:  blobs,
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

// Capture validates and stores a signature. Drawn input needs at least
// two points; uploaded input must decode as PNG or JPEG. The content
// hash covers the canonical JSON of the points or the raw image bytes.
func (s *SignatureService) Capture(ctx context.Context, signerID string, input dto.SignatureInput, meta CaptureMeta) (*models.SignatureRecord, error) {
	hasPoints := len(input.Points) > 0
	hasImage := input.ImageBase64 != ""
	if !hasPoints && !hasImage {
		return nil, appErrors.Clone(appErrors.ErrValidation, "drawn points or an image is required")
	}
	if hasPoints && hasImage {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide either drawn points or an image, not both")
	}

	record := &models.SignatureRecord{
		SignerID:   signerID,
		CapturedAt: s.now(),
		CapturedIP: meta.IPAddress,
		UserAgent:  meta.UserAgent,
	}

	switch {
	case hasPoints:
		if len(input.Points) < 2 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a drawn signature needs at least two points")
		}
		canonical, err := json.Marshal(input.Points)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode signature points")
		}
		record.Kind = models.SignatureKindDrawn
		record.Points = canonical
		record.ContentHash = hashHex(canonical)
	case hasImage:
		raw, err := base64.StdEncoding.DecodeString(input.ImageBase64)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "signature image is not valid base64")
		}
		format, err := detectSignatureImage(raw)
		if err != nil {
			return nil, err
		}
		record.Kind = models.SignatureKindImage
		record.ContentHash = hashHex(raw)
		key := fmt.Sprintf("signatures/%s-%d.%s", signerID, record.CapturedAt.UnixNano(), format)
		stored, err := s.blobs.Save(key, raw)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store signature image")
		}
		record.ImageKey = &stored
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store signature")
	}
	return record, nil
}

// Get returns a stored signature record.
func (s *SignatureService) Get(ctx context.Context, id string) (*models.SignatureRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "signature not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signature")
	}
	return record, nil
}

func detectSignatureImage(raw []byte) (string, error) {
	_, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "signature image must be PNG or JPEG")
	}
	switch format {
	case "png", "jpeg":
		return format, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "signature image must be PNG or JPEG")
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
