package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

const (
	pinSaltBytes      = 16
	pinKDFIterations  = 210000
	pinKDFKeyLength   = 32
	defaultPinLockout = 30 * time.Minute
	defaultPinMaxTry  = 3
)

var pinPattern = regexp.MustCompile(`^[0-9]{6}$`)

type pinStore interface {
	Get(ctx context.Context, parentID string) (*models.PinCredential, error)
	Upsert(ctx context.Context, cred *models.PinCredential) error
	RecordFailure(ctx context.Context, parentID string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error)
	RecordSuccess(ctx context.Context, parentID string, usedAt time.Time) error
	ResetLock(ctx context.Context, parentID string) error
}

// PinService manages parent approval PINs: salted KDF storage,
// verification with attempt tracking, and lockout.
type PinService struct {
	repo        pinStore
	audit       auditLogger
	metrics     *MetricsService
	logger      *zap.Logger
	maxAttempts int
	lockFor     time.Duration
	now         func() time.Time
}

// PinServiceOption configures the service.
type PinServiceOption func(*PinService)

// WithPinAttemptPolicy overrides the attempt cap and lockout window.
func WithPinAttemptPolicy(maxAttempts int, lockFor time.Duration) PinServiceOption {
	return func(s *PinService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if lockFor > 0 {
			s.lockFor = lockFor
		}
	}
}

// WithPinMetrics attaches failure and lockout counters.
func WithPinMetrics(metrics *MetricsService) PinServiceOption {
	return func(s *PinService) {
		s.metrics = metrics
	}
}

// WithPinClock overrides the time source.
func WithPinClock(now func() time.Time) PinServiceOption {
	return func(s *PinService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPinService constructs the service with defaults.
func NewPinService(repo pinStore, audit auditLogger, logger *zap.Logger, opts ...PinServiceOption) *PinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PinService{
		repo:        repo,
		audit:       audit,
		logger:      logger,
		maxAttempts: defaultPinMaxTry,
		lockFor:     defaultPinLockout,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SetPin replaces the caller's PIN. Setting a PIN always clears any
// previous attempts and lockout.
func (s *PinService) SetPin(ctx context.Context, parentID string, req dto.SetPinRequest) error {
	if !pinPattern.MatchString(req.Pin) {
		return appErrors.Clone(appErrors.ErrValidation, "PIN must be exactly 6 digits")
	}
	salt := make([]byte, pinSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate PIN salt")
	}
	cred := &models.PinCredential{
		ParentID: parentID,
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Hash:     base64.StdEncoding.EncodeToString(derivePinKey(req.Pin, salt)),
	}
	if err := s.repo.Upsert(ctx, cred); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store PIN")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &parentID,
		Action:     models.AuditActionPinSet,
		Resource:   "pin_credential",
		ResourceID: &parentID,
	})
	return nil
}

// Verify checks a raw PIN against the stored credential. Failures count
// toward lockout; a correct PIN while locked still fails with the
// lockout error so the window cannot be probed through.
func (s *PinService) Verify(ctx context.Context, parentID, rawPin string) (*models.PinVerification, error) {
	cred, err := s.repo.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no PIN has been set for this parent")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load PIN credential")
	}
	now := s.now()
	if cred.LockedAt(now) {
		return nil, s.lockedError(cred.LockedUntil)
	}
	if s.compare(cred, rawPin) {
		if err := s.repo.RecordSuccess(ctx, parentID, now); err != nil {
			s.logger.Warn("failed to record pin success", zap.String("parent_id", parentID), zap.Error(err))
		}
		return &models.PinVerification{Valid: true, AttemptsRemaining: s.maxAttempts}, nil
	}

	attempts, lockedUntil, err := s.repo.RecordFailure(ctx, parentID, s.maxAttempts, now.Add(s.lockFor))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record PIN failure")
	}
	if lockedUntil != nil && now.Before(*lockedUntil) {
		s.metrics.RecordPinFailure(true)
		s.emitAudit(ctx, &models.AuditLog{
			UserID:     &parentID,
			Action:     models.AuditActionPinLocked,
			Resource:   "pin_credential",
			ResourceID: &parentID,
		})
		return nil, s.lockedError(lockedUntil)
	}
	s.metrics.RecordPinFailure(false)
	remaining := s.maxAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}
	return nil, appErrors.WithDetails(appErrors.ErrInvalidPin, map[string]interface{}{
		"attempts_remaining": remaining,
	})
}

// Status reports whether a PIN exists and its lockout state. Never
// counts as an attempt.
func (s *PinService) Status(ctx context.Context, parentID string) (*dto.PinStatusResponse, error) {
	cred, err := s.repo.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &dto.PinStatusResponse{HasPin: false, AttemptsRemaining: s.maxAttempts}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load PIN credential")
	}
	now := s.now()
	remaining := s.maxAttempts - cred.FailedAttempts
	if remaining < 0 {
		remaining = 0
	}
	resp := &dto.PinStatusResponse{
		HasPin:            true,
		Locked:            cred.LockedAt(now),
		AttemptsRemaining: remaining,
		LockedUntil:       cred.LockedUntil,
	}
	if resp.Locked {
		resp.AttemptsRemaining = 0
	}
	return resp, nil
}

// Reset clears attempts and lockout for a parent without touching the
// stored hash. Restricted to admins at the handler layer.
func (s *PinService) Reset(ctx context.Context, parentID, actorID string) error {
	if err := s.repo.ResetLock(ctx, parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no PIN credential for parent")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset PIN lock")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionPinReset,
		Resource:   "pin_credential",
		ResourceID: &parentID,
	})
	return nil
}

func (s *PinService) compare(cred *models.PinCredential, rawPin string) bool {
	salt, err := base64.StdEncoding.DecodeString(cred.Salt)
	if err != nil {
		s.logger.Error("corrupt pin salt", zap.String("parent_id", cred.ParentID), zap.Error(err))
		return false
	}
	stored, err := base64.StdEncoding.DecodeString(cred.Hash)
	if err != nil {
		s.logger.Error("corrupt pin hash", zap.String("parent_id", cred.ParentID), zap.Error(err))
		return false
	}
	derived := derivePinKey(rawPin, salt)
	return subtle.ConstantTimeCompare(derived, stored) == 1
}

func (s *PinService) lockedError(lockedUntil *time.Time) error {
	details := map[string]interface{}{"attempts_remaining": 0}
	if lockedUntil != nil {
		details["locked_until"] = lockedUntil.Format(time.RFC3339)
	}
	return appErrors.WithDetails(appErrors.ErrPinLocked, details)
}

func (s *PinService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func derivePinKey(rawPin string, salt []byte) []byte {
	return pbkdf2.Key([]byte(rawPin), salt, pinKDFIterations, pinKDFKeyLength, sha256.New)
}
