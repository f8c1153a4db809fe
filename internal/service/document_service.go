package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

const (
	verificationCodeLength   = 8
	verificationCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeCollisionRetries     = 5
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetByVerificationCode(ctx context.Context, code string) (*models.Document, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	AttachSignature(ctx context.Context, sig *models.DocumentSignature) error
	ListSignatures(ctx context.Context, documentID string) ([]models.DocumentSignature, error)
	RoleSigned(ctx context.Context, documentID string, role models.SignatureRole) (bool, error)
	Finalize(ctx context.Context, id, artifactKey, artifactHash string, finalizedAt time.Time) error
}

type signatureReader interface {
	GetByID(ctx context.Context, id string) (*models.SignatureRecord, error)
}

type personReader interface {
	GetPersonContext(ctx context.Context, studentID, parentID string) (*models.PersonContext, error)
}

type letterheadReader interface {
	GetByID(ctx context.Context, id string) (*models.Letterhead, error)
	GetDefault(ctx context.Context, schoolID string) (*models.Letterhead, error)
}

type blobStore interface {
	Save(key string, data []byte) (string, error)
	Read(key string) ([]byte, error)
}

type downloadSigner interface {
	Generate(documentID, blobKey string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (documentID, blobKey string, expiresAt time.Time, err error)
}

type certificateIssuer interface {
	Issue(ctx context.Context, documentID, signatureID, issuerIdentity string) (*models.Certificate, error)
}

// DocumentService generates personalized consent documents, collects
// role signatures and freezes the finalized PDF artifact.
type DocumentService struct {
	repo       documentStore
	sigs       signatureReader
	capturer   signatureCapturer
	events     eventConfigReader
	people     personReader
	letters    letterheadReader
	blobs      blobStore
	templates  *TemplateService
	signer     downloadSigner
	certs      certificateIssuer
	audit      auditLogger
	metrics    *MetricsService
	logger     *zap.Logger
	verifyBase string
	now        func() time.Time
}

// DocumentServiceOption configures the service.
type DocumentServiceOption func(*DocumentService)

// WithDocumentClock overrides the time source.
func WithDocumentClock(now func() time.Time) DocumentServiceOption {
	return func(s *DocumentService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVerifyBaseURL sets the public base URL embedded in the QR footer.
func WithVerifyBaseURL(base string) DocumentServiceOption {
	return func(s *DocumentService) {
		s.verifyBase = strings.TrimRight(base, "/")
	}
}

// WithDocumentMetrics attaches finalize counters.
func WithDocumentMetrics(metrics *MetricsService) DocumentServiceOption {
	return func(s *DocumentService) {
		s.metrics = metrics
	}
}

// WithCertificateIssuer binds certificate issuance to finalization.
func WithCertificateIssuer(issuer certificateIssuer) DocumentServiceOption {
	return func(s *DocumentService) {
		s.certs = issuer
	}
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(
	repo documentStore,
	sigs signatureReader,
	capturer signatureCapturer,
	events eventConfigReader,
	people personReader,
	letters letterheadReader,
	blobs blobStore,
	templates *TemplateService,
	signer downloadSigner,
	audit auditLogger,
	logger *zap.Logger,
	opts ...DocumentServiceOption,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DocumentService{
		repo:       repo,
		sigs:       sigs,
		capturer:   capturer,
		events:     events,
		people:     people,
		letters:    letters,
		blobs:      blobs,
		templates:  templates,
		signer:     signer,
		audit:      audit,
		logger:     logger,
		verifyBase: "http://localhost:8080/verify",
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Generate renders a personalized document from a template and stores
// it unfinalized with a fresh verification code.
func (s *DocumentService) Generate(ctx context.Context, req dto.GenerateDocumentRequest, actorID string) (*models.Document, error) {
	cfg, err := s.events.GetConfig(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if !cfg.RequiresApproval {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "event does not require approval documents")
	}

	var person *models.PersonContext
	if req.StudentID != "" && req.ParentID != "" {
		person, err = s.people.GetPersonContext(ctx, req.StudentID, req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "student or parent not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person context")
		}
	}

	title := req.Title
	body := req.Template
	if body == "" {
		builtinTitle, builtinBody, err := s.templates.Builtin(req.Type)
		if err != nil {
			return nil, err
		}
		body = builtinBody
		if title == "" {
			title = builtinTitle
		}
	}
	content, err := s.templates.Render(body, s.templates.BuildContext(cfg, person))
	if err != nil {
		return nil, err
	}

	code, err := s.mintVerificationCode(ctx)
	if err != nil {
		return nil, err
	}

	required := models.RoleList(req.Required)
	if len(required) == 0 {
		required = models.RoleList{models.SignatureRoleParent, models.SignatureRoleAdmin}
	}
	for _, role := range required {
		if !role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported signature role %q", role))
		}
	}

	doc := &models.Document{
		EventID:          req.EventID,
		Type:             req.Type,
		Title:            title,
		Content:          content,
		ContentHash:      hashHex([]byte(content)),
		RequiredRoles:    required,
		VerificationCode: code,
		CreatedBy:        actorID,
		CreatedAt:        s.now(),
	}
	if req.StudentID != "" {
		doc.StudentID = &req.StudentID
	}
	if req.ParentID != "" {
		doc.ParentID = &req.ParentID
	}
	if id := s.pickLetterhead(ctx, req.LetterheadID, cfg); id != nil {
		doc.LetterheadID = id
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDocumentCreate,
		Resource:   "document",
		ResourceID: &doc.ID,
	})
	return doc, nil
}

// AttachSignature captures and links a signature under a role. Fails on
// finalized documents and on roles that already signed.
func (s *DocumentService) AttachSignature(ctx context.Context, documentID string, req dto.AttachSignatureRequest, signerID string, meta CaptureMeta) (*models.DocumentSignature, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsFinalized {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "document is already finalized")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported signature role")
	}
	if !doc.RequiredRoles.Contains(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role is not required on this document")
	}
	signed, err := s.repo.RoleSigned(ctx, documentID, req.Role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing signatures")
	}
	if signed {
		return nil, appErrors.ErrDuplicateSignature
	}

	record, err := s.capturer.Capture(ctx, signerID, req.Signature, meta)
	if err != nil {
		return nil, err
	}
	link := &models.DocumentSignature{
		DocumentID:  documentID,
		SignatureID: record.ID,
		Role:        req.Role,
		SignedAt:    s.now(),
	}
	if err := s.repo.AttachSignature(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach signature")
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &signerID,
		Action:     models.AuditActionDocumentSign,
		Resource:   "document",
		ResourceID: &documentID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
	return link, nil
}

// Finalize freezes the document into a PDF artifact. Repeat calls
// return the stored artifact without re-rendering; the one-row guard in
// the repository ensures a single caller performs the render even under
// concurrency.
func (s *DocumentService) Finalize(ctx context.Context, documentID, actorID string) (*dto.FinalizeResponse, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsFinalized {
		return s.finalizeResponse(doc)
	}

	attached, err := s.repo.ListSignatures(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list signatures")
	}
	byRole := make(map[models.SignatureRole]models.DocumentSignature, len(attached))
	for _, sig := range attached {
		byRole[sig.Role] = sig
	}
	missing := make([]string, 0, len(doc.RequiredRoles))
	for _, role := range doc.RequiredRoles {
		if _, ok := byRole[role]; !ok {
			missing = append(missing, string(role))
		}
	}
	if len(missing) > 0 {
		err := appErrors.Clone(appErrors.ErrIncompleteSignatures,
			fmt.Sprintf("missing signatures for roles: %s", strings.Join(missing, ", ")))
		return nil, appErrors.WithDetails(err, map[string]interface{}{"missing_roles": missing})
	}

	renderStart := s.now()
	pdfBytes, err := s.renderPDF(ctx, doc, attached)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDocumentFinalize(s.now().Sub(renderStart))
	artifactKey := fmt.Sprintf("documents/%s.pdf", doc.ID)
	if _, err := s.blobs.Save(artifactKey, pdfBytes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document artifact")
	}

	finalizedAt := s.now()
	artifactHash := hashHex(pdfBytes)
	if err := s.repo.Finalize(ctx, doc.ID, artifactKey, artifactHash, finalizedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the finalize race; serve whatever the winner stored.
			doc, err = s.load(ctx, doc.ID)
			if err != nil {
				return nil, err
			}
			return s.finalizeResponse(doc)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize document")
	}
	doc.IsFinalized = true
	doc.ArtifactKey = &artifactKey
	doc.ArtifactHash = artifactHash
	doc.FinalizedAt = &finalizedAt

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDocumentFinalize,
		Resource:   "document",
		ResourceID: &doc.ID,
	})

	if s.certs != nil {
		if parentSig, ok := byRole[models.SignatureRoleParent]; ok {
			if _, err := s.certs.Issue(ctx, doc.ID, parentSig.SignatureID, actorID); err != nil {
				s.logger.Error("certificate issuance failed",
					zap.String("document_id", doc.ID), zap.Error(err))
			}
		}
	}
	return s.finalizeResponse(doc)
}

// Get returns one document.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.load(ctx, id)
}

// GetByVerificationCode resolves a document for public verification.
func (s *DocumentService) GetByVerificationCode(ctx context.Context, code string) (*models.Document, error) {
	doc, err := s.repo.GetByVerificationCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// Download validates a signed token and returns the artifact bytes.
func (s *DocumentService) Download(ctx context.Context, token string) (string, []byte, error) {
	documentID, blobKey, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	data, err := s.blobs.Read(blobKey)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document artifact")
	}
	return documentID, data, nil
}

// PrepareForApproval generates the event's approval form for a freshly
// approved consent and attaches the parent's signature. Finalization
// waits for the admin co-signature.
func (s *DocumentService) PrepareForApproval(ctx context.Context, approval *models.Approval, cfg *models.EventConfig, sig *models.SignatureRecord) error {
	req := dto.GenerateDocumentRequest{
		EventID:   approval.EventID,
		StudentID: approval.StudentID,
		ParentID:  approval.ParentID,
		Type:      models.DocumentTypeApprovalForm,
	}
	doc, err := s.Generate(ctx, req, approval.ParentID)
	if err != nil {
		return err
	}
	if sig == nil {
		return nil
	}
	link := &models.DocumentSignature{
		DocumentID:  doc.ID,
		SignatureID: sig.ID,
		Role:        models.SignatureRoleParent,
		SignedAt:    s.now(),
	}
	if err := s.repo.AttachSignature(ctx, link); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach approval signature")
	}
	return nil
}

func (s *DocumentService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) finalizeResponse(doc *models.Document) (*dto.FinalizeResponse, error) {
	if doc.ArtifactKey == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "finalized document has no artifact")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, *doc.ArtifactKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return &dto.FinalizeResponse{Document: doc, DownloadToken: token, ExpiresAt: expiresAt}, nil
}

func (s *DocumentService) pickLetterhead(ctx context.Context, requested string, cfg *models.EventConfig) *string {
	if requested != "" {
		return &requested
	}
	if cfg.LetterheadID != nil {
		return cfg.LetterheadID
	}
	lh, err := s.letters.GetDefault(ctx, cfg.SchoolID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load default letterhead", zap.String("school_id", cfg.SchoolID), zap.Error(err))
		}
		return nil
	}
	return &lh.ID
}

func (s *DocumentService) mintVerificationCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeCollisionRetries; attempt++ {
		code, err := randomCode(verificationCodeLength)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification code")
		}
		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check verification code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrInternal, "could not mint a unique verification code")
}

func (s *DocumentService) renderPDF(ctx context.Context, doc *models.Document, attached []models.DocumentSignature) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	if doc.LetterheadID != nil {
		s.drawLetterhead(ctx, pdf, *doc.LetterheadID)
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, doc.Title, "", "C", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, doc.Content, "", "L", false)
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Signatures", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, link := range attached {
		record, err := s.sigs.GetByID(ctx, link.SignatureID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signature for render")
		}
		line := fmt.Sprintf("%s signed %s (%s)",
			link.Role, link.SignedAt.Format("2 Jan 2006 15:04 MST"), strings.ToLower(string(record.Kind)))
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
		if record.ImageKey != nil {
			s.drawSignatureImage(pdf, *record.ImageKey)
		}
		pdf.Ln(2)
	}

	s.drawVerificationFooter(pdf, doc)
	if pdf.Err() {
		return nil, appErrors.Clone(appErrors.ErrInternal, "failed to render document PDF")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render document PDF")
	}
	return buf.Bytes(), nil
}

func (s *DocumentService) drawLetterhead(ctx context.Context, pdf *gofpdf.Fpdf, letterheadID string) {
	lh, err := s.letters.GetByID(ctx, letterheadID)
	if err != nil {
		s.logger.Warn("letterhead not found for render", zap.String("letterhead_id", letterheadID), zap.Error(err))
		return
	}
	imageType := ""
	switch lh.FileType {
	case "image/png":
		imageType = "PNG"
	case "image/jpeg":
		imageType = "JPG"
	default:
		// PDF letterheads cannot be embedded as images; skip the header.
		return
	}
	data, err := s.blobs.Read(lh.FileKey)
	if err != nil {
		s.logger.Warn("letterhead blob unreadable", zap.String("letterhead_id", letterheadID), zap.Error(err))
		return
	}
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	pdf.RegisterImageOptionsReader(lh.FileKey, opts, bytes.NewReader(data))
	pdf.ImageOptions(lh.FileKey, 20, 12, 170, 0, false, opts, 0, "")
	pdf.SetY(45)
}

func (s *DocumentService) drawSignatureImage(pdf *gofpdf.Fpdf, imageKey string) {
	data, err := s.blobs.Read(imageKey)
	if err != nil {
		s.logger.Warn("signature image unreadable", zap.String("image_key", imageKey), zap.Error(err))
		return
	}
	imageType := "PNG"
	if len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8 {
		imageType = "JPG"
	}
	opts := gofpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(imageKey, opts, bytes.NewReader(data))
	pdf.ImageOptions(imageKey, pdf.GetX()+4, pdf.GetY(), 50, 0, true, opts, 0, "")
}

func (s *DocumentService) drawVerificationFooter(pdf *gofpdf.Fpdf, doc *models.Document) {
	verifyURL := fmt.Sprintf("%s/%s", s.verifyBase, doc.VerificationCode)
	pdf.SetY(-50)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf("Verification code: %s\nVerify at %s", doc.VerificationCode, verifyURL), "", "L", false)

	png, err := qrcode.Encode(verifyURL, qrcode.Medium, 256)
	if err != nil {
		s.logger.Warn("qr encode failed", zap.String("document_id", doc.ID), zap.Error(err))
		return
	}
	name := "qr-" + doc.ID
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
	pdf.ImageOptions(name, 165, 252, 25, 25, false, opts, 0, "")
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = verificationCodeAlphabet[int(b)%len(verificationCodeAlphabet)]
	}
	return string(out), nil
}
