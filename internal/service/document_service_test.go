package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
	"github.com/shulepay/approvals-api/pkg/storage"
)

type fakeDocumentStore struct {
	docs  map[string]*models.Document
	links map[string][]models.DocumentSignature
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		docs:  make(map[string]*models.Document),
		links: make(map[string][]models.DocumentSignature),
	}
}

func (f *fakeDocumentStore) Create(_ context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	clone := *doc
	f.docs[doc.ID] = &clone
	return nil
}

func (f *fakeDocumentStore) GetByID(_ context.Context, id string) (*models.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *doc
	return &clone, nil
}

func (f *fakeDocumentStore) GetByVerificationCode(_ context.Context, code string) (*models.Document, error) {
	for _, doc := range f.docs {
		if doc.VerificationCode == code {
			clone := *doc
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDocumentStore) CodeExists(_ context.Context, code string) (bool, error) {
	for _, doc := range f.docs {
		if doc.VerificationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocumentStore) AttachSignature(_ context.Context, sig *models.DocumentSignature) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	for _, existing := range f.links[sig.DocumentID] {
		if existing.Role == sig.Role {
			return fmt.Errorf("duplicate role %s", sig.Role)
		}
	}
	f.links[sig.DocumentID] = append(f.links[sig.DocumentID], *sig)
	return nil
}

func (f *fakeDocumentStore) ListSignatures(_ context.Context, documentID string) ([]models.DocumentSignature, error) {
	return append([]models.DocumentSignature(nil), f.links[documentID]...), nil
}

func (f *fakeDocumentStore) RoleSigned(_ context.Context, documentID string, role models.SignatureRole) (bool, error) {
	for _, link := range f.links[documentID] {
		if link.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocumentStore) Finalize(_ context.Context, id, artifactKey, artifactHash string, finalizedAt time.Time) error {
	doc, ok := f.docs[id]
	if !ok || doc.IsFinalized {
		return sql.ErrNoRows
	}
	doc.IsFinalized = true
	doc.ArtifactKey = &artifactKey
	doc.ArtifactHash = artifactHash
	doc.FinalizedAt = &finalizedAt
	return nil
}

type fakePeople struct{}

func (fakePeople) GetPersonContext(_ context.Context, _, _ string) (*models.PersonContext, error) {
	return &models.PersonContext{
		StudentName:   "Amina Odhiambo",
		StudentNumber: "ADM-0042",
		StudentClass:  "Grade 6 Blue",
		ParentName:    "Grace Odhiambo",
		ParentPhone:   "+254700000001",
		SchoolName:    "Sunrise Academy",
		SchoolAddress: "P.O. Box 123, Nairobi",
	}, nil
}

type fakeLetterheads struct {
	byID map[string]*models.Letterhead
}

func (f *fakeLetterheads) GetByID(_ context.Context, id string) (*models.Letterhead, error) {
	lh, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return lh, nil
}

func (f *fakeLetterheads) GetDefault(_ context.Context, _ string) (*models.Letterhead, error) {
	return nil, sql.ErrNoRows
}

type documentFixture struct {
	svc   *DocumentService
	docs  *fakeDocumentStore
	sigs  *fakeSignatureStore
	blobs *memoryBlobs
	audit *captureAudit
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	docs := newFakeDocumentStore()
	sigs := newFakeSignatureStore()
	blobs := newMemoryBlobs()
	events := &fakeEvents{configs: map[string]*models.EventConfig{
		"event-1": {
			ID: "event-1", SchoolID: "school-1",
			Name: "Sports Day", Description: "Annual inter-house games.",
			Amount: "1500.00", Currency: "KES",
			DueDate:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			RequiresApproval: true,
		},
	}}
	capturer := NewSignatureService(sigs, blobs, nil)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	audit := &captureAudit{}
	svc := NewDocumentService(
		docs, sigs, capturer, events, fakePeople{}, &fakeLetterheads{}, blobs,
		NewTemplateService(), signer, audit, nil,
	)
	return &documentFixture{svc: svc, docs: docs, sigs: sigs, blobs: blobs, audit: audit}
}

func generateTestDocument(t *testing.T, fx *documentFixture) *models.Document {
	t.Helper()
	doc, err := fx.svc.Generate(context.Background(), dto.GenerateDocumentRequest{
		EventID:   "event-1",
		StudentID: "student-1",
		ParentID:  "parent-1",
		Type:      models.DocumentTypeApprovalForm,
	}, "admin-1")
	require.NoError(t, err)
	return doc
}

func signTestDocument(t *testing.T, fx *documentFixture, docID string, role models.SignatureRole, signer string) {
	t.Helper()
	_, err := fx.svc.AttachSignature(context.Background(), docID, dto.AttachSignatureRequest{
		Role:      role,
		Signature: *drawnSignature(),
	}, signer, CaptureMeta{})
	require.NoError(t, err)
}

func TestGenerateDocumentFromBuiltin(t *testing.T) {
	fx := newDocumentFixture(t)
	doc := generateTestDocument(t, fx)

	require.Equal(t, "Parental Approval Form", doc.Title)
	require.NotContains(t, doc.Content, "{{")
	require.Contains(t, doc.Content, "Amina Odhiambo")
	require.Contains(t, doc.Content, "Sports Day")
	require.Len(t, doc.VerificationCode, verificationCodeLength)
	require.Equal(t, models.RoleList{models.SignatureRoleParent, models.SignatureRoleAdmin}, doc.RequiredRoles)
	require.False(t, doc.IsFinalized)
	require.Equal(t, hashHex([]byte(doc.Content)), doc.ContentHash)
}

func TestDocumentLifecycleWritesAuditTrail(t *testing.T) {
	fx := newDocumentFixture(t)
	doc := generateTestDocument(t, fx)
	signTestDocument(t, fx, doc.ID, models.SignatureRoleParent, "parent-1")
	signTestDocument(t, fx, doc.ID, models.SignatureRoleAdmin, "admin-1")
	_, err := fx.svc.Finalize(context.Background(), doc.ID, "admin-1")
	require.NoError(t, err)

	var actions []string
	for _, entry := range fx.audit.logs {
		actions = append(actions, entry.Action)
	}
	require.Equal(t, []string{
		models.AuditActionDocumentCreate,
		models.AuditActionDocumentSign,
		models.AuditActionDocumentSign,
		models.AuditActionDocumentFinalize,
	}, actions)
}

func TestGenerateDocumentRejectsUnboundCustomTemplate(t *testing.T) {
	fx := newDocumentFixture(t)
	_, err := fx.svc.Generate(context.Background(), dto.GenerateDocumentRequest{
		EventID:   "event-1",
		StudentID: "student-1",
		ParentID:  "parent-1",
		Type:      models.DocumentTypeCustom,
		Title:     "Custom",
		Template:  "Dear {{parent_name}}, pay {{made_up_token}} now.",
	}, "admin-1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrMissingPlaceholder.Code, appErr.Code)
}

func TestAttachSignatureRoleExclusivity(t *testing.T) {
	fx := newDocumentFixture(t)
	doc := generateTestDocument(t, fx)

	signTestDocument(t, fx, doc.ID, models.SignatureRoleParent, "parent-1")

	_, err := fx.svc.AttachSignature(context.Background(), doc.ID, dto.AttachSignatureRequest{
		Role:      models.SignatureRoleParent,
		Signature: *drawnSignature(),
	}, "parent-2", CaptureMeta{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrDuplicateSignature.Code, appErr.Code)
}

func TestFinalizeRequiresAllRoles(t *testing.T) {
	fx := newDocumentFixture(t)
	doc := generateTestDocument(t, fx)
	signTestDocument(t, fx, doc.ID, models.SignatureRoleParent, "parent-1")

	_, err := fx.svc.Finalize(context.Background(), doc.ID, "admin-1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrIncompleteSignatures.Code, appErr.Code)
	require.Contains(t, appErr.Details["missing_roles"], "ADMIN")
}

func TestFinalizeProducesSignedArtifact(t *testing.T) {
	fx := newDocumentFixture(t)
	doc := generateTestDocument(t, fx)
	signTestDocument(t, fx, doc.ID, models.SignatureRoleParent, "parent-1")
	signTestDocument(t, fx, doc.ID, models.SignatureRoleAdmin, "admin-1")

	resp, err := fx.svc.Finalize(context.Background(), doc.ID, "admin-1")
	require.NoError(t, err)
	require.True(t, resp.Document.IsFinalized)
	require.NotNil(t, resp.Document.ArtifactKey)
	require.NotEmpty(t, resp.DownloadToken)

	artifact := fx.blobs.blobs[*resp.Document.ArtifactKey]
	require.True(t, bytes.HasPrefix(artifact, []byte("%PDF")))
	require.Equal(t, hashHex(artifact), resp.Document.ArtifactHash)

	// The signed token downloads the same bytes.
	docID, data, err := fx.svc.Download(context.Background(), resp.DownloadToken)
	require.NoError(t, err)
	require.Equal(t, doc.ID, docID)
	require.Equal(t, artifact, data)

	// Attaching after finalize is rejected.
	_, err = fx.svc.AttachSignature(context.Background(), doc.ID, dto.AttachSignatureRequest{
		Role:      models.SignatureRoleAdmin,
		Signature: *drawnSignature(),
	}, "admin-2", CaptureMeta{})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	fx := newDocumentFixture(t)
	doc := generateTestDocument(t, fx)
	signTestDocument(t, fx, doc.ID, models.SignatureRoleParent, "parent-1")
	signTestDocument(t, fx, doc.ID, models.SignatureRoleAdmin, "admin-1")

	first, err := fx.svc.Finalize(context.Background(), doc.ID, "admin-1")
	require.NoError(t, err)
	artifact := append([]byte(nil), fx.blobs.blobs[*first.Document.ArtifactKey]...)

	second, err := fx.svc.Finalize(context.Background(), doc.ID, "admin-1")
	require.NoError(t, err)
	require.Equal(t, *first.Document.ArtifactKey, *second.Document.ArtifactKey)
	require.Equal(t, first.Document.ArtifactHash, second.Document.ArtifactHash)
	// Stored bytes are untouched; no re-render happened.
	require.Equal(t, artifact, fx.blobs.blobs[*second.Document.ArtifactKey])
}

func TestDownloadRejectsForgedToken(t *testing.T) {
	fx := newDocumentFixture(t)
	_, _, err := fx.svc.Download(context.Background(), "doc.12345.a2V5.deadbeef")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestPrepareForApprovalAttachesParentSignature(t *testing.T) {
	fx := newDocumentFixture(t)
	capturer := NewSignatureService(fx.sigs, fx.blobs, nil)
	record, err := capturer.Capture(context.Background(), "parent-1", *drawnSignature(), CaptureMeta{})
	require.NoError(t, err)

	templateID := "tpl-1"
	approval := &models.Approval{
		ID: "appr-1", EventID: "event-1", StudentID: "student-1", ParentID: "parent-1",
		Status: models.ApprovalStatusApproved,
	}
	cfg := &models.EventConfig{ID: "event-1", DocumentTemplateID: &templateID}
	require.NoError(t, fx.svc.PrepareForApproval(context.Background(), approval, cfg, record))

	require.Len(t, fx.docs.docs, 1)
	for id := range fx.docs.docs {
		links := fx.docs.links[id]
		require.Len(t, links, 1)
		require.Equal(t, models.SignatureRoleParent, links[0].Role)
		require.Equal(t, record.ID, links[0].SignatureID)
	}
}
