package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	"github.com/shulepay/approvals-api/internal/repository"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

const defaultExpiryWindow = 30 * 24 * time.Hour

type approvalStore interface {
	Create(ctx context.Context, approval *models.Approval) error
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	GetLiveByTriple(ctx context.Context, eventID, studentID, parentID string) (*models.Approval, error)
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error)
	Decide(ctx context.Context, params repository.DecideApprovalParams) error
	ExpireOverdue(ctx context.Context, now time.Time) ([]models.Approval, error)
}

type guardianChecker interface {
	IsGuardianOf(ctx context.Context, parentID, studentID string) (bool, error)
	ListGuardianPairs(ctx context.Context, eventID string) ([]models.GuardianPair, error)
}

type eventConfigReader interface {
	GetConfig(ctx context.Context, eventID string) (*models.EventConfig, error)
}

type pinVerifier interface {
	Verify(ctx context.Context, parentID, rawPin string) (*models.PinVerification, error)
}

type signatureCapturer interface {
	Capture(ctx context.Context, signerID string, input dto.SignatureInput, meta CaptureMeta) (*models.SignatureRecord, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ConsentPaperwork prepares the approval document for an approved
// consent: generate if needed and attach the parent's signature.
// Finalization waits for the admin co-signature.
type ConsentPaperwork interface {
	PrepareForApproval(ctx context.Context, approval *models.Approval, cfg *models.EventConfig, sig *models.SignatureRecord) error
}

// ApprovalNotifier fans a decided approval out to interested parents.
// Dispatch is fire-and-forget; it never affects the transition.
type ApprovalNotifier interface {
	ApprovalDecided(approval *models.Approval)
}

// ApprovalService drives the pending/approved/rejected/expired workflow.
type ApprovalService struct {
	repo      approvalStore
	guardians guardianChecker
	events    eventConfigReader
	pins      pinVerifier
	captures  signatureCapturer
	paperwork ConsentPaperwork
	notifier  ApprovalNotifier
	audit     auditLogger
	metrics   *MetricsService
	logger    *zap.Logger
	expiry    time.Duration
	now       func() time.Time
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithApprovalExpiry overrides the approval expiry window.
func WithApprovalExpiry(window time.Duration) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if window > 0 {
			s.expiry = window
		}
	}
}

// WithApprovalClock overrides the time source.
func WithApprovalClock(now func() time.Time) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConsentPaperwork attaches document generation to approvals.
func WithConsentPaperwork(paperwork ConsentPaperwork) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.paperwork = paperwork
	}
}

// WithApprovalNotifier attaches notification dispatch.
func WithApprovalNotifier(notifier ApprovalNotifier) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.notifier = notifier
	}
}

// WithApprovalMetrics attaches transition counters.
func WithApprovalMetrics(metrics *MetricsService) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.metrics = metrics
	}
}

// NewApprovalService constructs the service with defaults.
func NewApprovalService(
	repo approvalStore,
	guardians guardianChecker,
	events eventConfigReader,
	pins pinVerifier,
	captures signatureCapturer,
	audit auditLogger,
	logger *zap.Logger,
	opts ...ApprovalServiceOption,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		repo:      repo,
		guardians: guardians,
		events:    events,
		pins:      pins,
		captures:  captures,
		audit:     audit,
		logger:    logger,
		expiry:    defaultExpiryWindow,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// RequestMeta carries the caller identity the workflow stamps on rows.
type RequestMeta struct {
	ParentID  string
	IPAddress string
	UserAgent string
}

// RequestApproval runs the consent workflow for one parent. Every
// validation failure leaves the approval pending; only a fully
// validated request transitions it, and the transition itself is a
// compare-and-swap so a concurrent decision surfaces AlreadyDecided.
func (s *ApprovalService) RequestApproval(ctx context.Context, req dto.RequestApprovalRequest, meta RequestMeta) (*models.Approval, error) {
	cfg, err := s.events.GetConfig(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !cfg.RequiresApproval {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "event does not require approval")
	}

	isGuardian, err := s.guardians.IsGuardianOf(ctx, meta.ParentID, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check guardianship")
	}
	if !isGuardian {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "caller is not a guardian of this student")
	}

	approval, err := s.liveApproval(ctx, req.EventID, req.StudentID, meta.ParentID, cfg)
	if err != nil {
		return nil, err
	}
	if approval.Status.Terminal() {
		return nil, appErrors.ErrAlreadyDecided
	}
	if approval.ExpiresAt != nil && !approval.ExpiresAt.After(s.now()) {
		return nil, appErrors.ErrApprovalExpired
	}

	if !req.Method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported approval method")
	}
	needsSignature := req.Method == models.ApprovalMethodSignature || req.Method == models.ApprovalMethodBoth
	needsPin := req.Method == models.ApprovalMethodPin || req.Method == models.ApprovalMethodBoth
	if needsSignature && req.Signature == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "signature input is required for this method")
	}
	if needsPin && strings.TrimSpace(req.Pin) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "PIN input is required for this method")
	}

	if needsPin {
		if _, err := s.pins.Verify(ctx, meta.ParentID, req.Pin); err != nil {
			return nil, err
		}
	}

	var sig *models.SignatureRecord
	if needsSignature {
		sig, err = s.captures.Capture(ctx, meta.ParentID, *req.Signature, CaptureMeta{
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
		})
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	params := repository.DecideApprovalParams{
		ID:         approval.ID,
		Status:     models.ApprovalStatusApproved,
		Method:     req.Method,
		PinUsed:    needsPin,
		Notes:      req.Notes,
		ApprovedAt: &now,
		Now:        now,
	}
	if sig != nil {
		params.SignatureID = &sig.ID
	}
	if err := s.repo.Decide(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyDecided
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve")
	}

	approval.Status = models.ApprovalStatusApproved
	approval.Method = req.Method
	approval.PinUsed = needsPin
	approval.Notes = req.Notes
	approval.ApprovedAt = &now
	if sig != nil {
		approval.SignatureID = &sig.ID
	}

	if s.paperwork != nil && cfg.DocumentTemplateID != nil {
		if err := s.paperwork.PrepareForApproval(ctx, approval, cfg, sig); err != nil {
			s.logger.Error("approval document preparation failed",
				zap.String("approval_id", approval.ID), zap.Error(err))
		}
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &meta.ParentID,
		Action:     models.AuditActionApprovalApproved,
		Resource:   "approval",
		ResourceID: &approval.ID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	s.notify(approval)
	return approval, nil
}

// Reject transitions a pending approval to rejected. Parents may reject
// their own approvals; admins any.
func (s *ApprovalService) Reject(ctx context.Context, id string, req dto.RejectApprovalRequest, actor *models.JWTClaims, ip, userAgent string) (*models.Approval, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	approval, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleAdmin:
	case models.RoleParent:
		if approval.ParentID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	default:
		return nil, appErrors.ErrForbidden
	}
	if approval.Status.Terminal() {
		return nil, appErrors.ErrAlreadyDecided
	}
	if approval.ExpiresAt != nil && !approval.ExpiresAt.After(s.now()) {
		return nil, appErrors.ErrApprovalExpired
	}

	err = s.repo.Decide(ctx, repository.DecideApprovalParams{
		ID:              approval.ID,
		Status:          models.ApprovalStatusRejected,
		Method:          approval.Method,
		RejectionReason: strings.TrimSpace(req.Reason),
		Now:             s.now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAlreadyDecided
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject approval")
	}
	approval.Status = models.ApprovalStatusRejected
	approval.RejectionReason = strings.TrimSpace(req.Reason)

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionApprovalRejected,
		Resource:   "approval",
		ResourceID: &approval.ID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	s.notify(approval)
	return approval, nil
}

// Get returns one approval, scoped to the actor.
func (s *ApprovalService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Approval, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	approval, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	if actor.Role == models.RoleParent && approval.ParentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return approval, nil
}

// List returns approvals the actor may see: parents their own, teachers
// their groups' students, admins everything.
func (s *ApprovalService) List(ctx context.Context, query dto.ApprovalQuery, actor *models.JWTClaims) ([]models.Approval, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.ApprovalFilter{
		Status:  query.Status,
		EventID: query.EventID,
	}
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleAdmin:
	case models.RoleTeacher:
		filter.TeacherID = actor.UserID
	case models.RoleParent:
		filter.ParentID = actor.UserID
	default:
		return nil, appErrors.ErrForbidden
	}
	approvals, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	return approvals, nil
}

// CanPay reports payment eligibility: a pure read of approval status.
func (s *ApprovalService) CanPay(ctx context.Context, id string, actor *models.JWTClaims) (*dto.CanPayResponse, error) {
	approval, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &dto.CanPayResponse{ApprovalID: approval.ID, CanPay: approval.CanPay()}, nil
}

// SeedForEvent creates pending approvals for every eligible
// (student, parent) pair of an event that requires approval. Pairs that
// already hold a live approval are skipped. Returns the seeded count.
func (s *ApprovalService) SeedForEvent(ctx context.Context, eventID string) (int, error) {
	cfg, err := s.events.GetConfig(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !cfg.RequiresApproval {
		return 0, appErrors.Clone(appErrors.ErrInvalidState, "event does not require approval")
	}
	pairs, err := s.guardians.ListGuardianPairs(ctx, eventID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guardian pairs")
	}
	seeded := 0
	for _, pair := range pairs {
		if _, err := s.repo.GetLiveByTriple(ctx, eventID, pair.StudentID, pair.ParentID); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return seeded, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing approval")
		}
		approval := s.newPending(eventID, pair.StudentID, pair.ParentID, cfg)
		if err := s.repo.Create(ctx, approval); err != nil {
			s.logger.Warn("failed to seed approval",
				zap.String("event_id", eventID), zap.String("student_id", pair.StudentID), zap.Error(err))
			continue
		}
		seeded++
	}
	return seeded, nil
}

// ExpireOverdue sweeps pending approvals past their deadline into
// expired, audits the batch and notifies affected parents.
func (s *ApprovalService) ExpireOverdue(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire approvals")
	}
	for i := range expired {
		approval := &expired[i]
		s.emitAudit(ctx, &models.AuditLog{
			Action:     models.AuditActionApprovalExpired,
			Resource:   "approval",
			ResourceID: &approval.ID,
		})
		s.notify(approval)
	}
	return len(expired), nil
}

func (s *ApprovalService) liveApproval(ctx context.Context, eventID, studentID, parentID string, cfg *models.EventConfig) (*models.Approval, error) {
	approval, err := s.repo.GetLiveByTriple(ctx, eventID, studentID, parentID)
	if err == nil {
		return approval, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
	}
	approval = s.newPending(eventID, studentID, parentID, cfg)
	if err := s.repo.Create(ctx, approval); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &parentID,
		Action:     models.AuditActionApprovalRequest,
		Resource:   "approval",
		ResourceID: &approval.ID,
	})
	return approval, nil
}

func (s *ApprovalService) newPending(eventID, studentID, parentID string, cfg *models.EventConfig) *models.Approval {
	now := s.now()
	expiresAt := now.Add(s.expiry)
	if cfg.ApprovalDeadline != nil && cfg.ApprovalDeadline.Before(expiresAt) {
		expiresAt = *cfg.ApprovalDeadline
	}
	return &models.Approval{
		EventID:     eventID,
		StudentID:   studentID,
		ParentID:    parentID,
		Status:      models.ApprovalStatusPending,
		Method:      models.ApprovalMethodSignature,
		RequestedAt: now,
		ExpiresAt:   &expiresAt,
	}
}

func (s *ApprovalService) notify(approval *models.Approval) {
	s.metrics.RecordTransition(approval.Status)
	if s.notifier == nil {
		return
	}
	s.notifier.ApprovalDecided(approval)
}

func (s *ApprovalService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
