package models

import "time"

// DocumentType enumerates the supported document categories.
type DocumentType string

const (
	DocumentTypeApprovalForm     DocumentType = "APPROVAL_FORM"
	DocumentTypeConsentForm      DocumentType = "CONSENT_FORM"
	DocumentTypePaymentAgreement DocumentType = "PAYMENT_AGREEMENT"
	DocumentTypeLiabilityWaiver  DocumentType = "LIABILITY_WAIVER"
	DocumentTypeCustom           DocumentType = "CUSTOM"
)

// Document is a generated artifact tied to one event, optionally
// personalized per student/parent. Content freezes on finalization.
type Document struct {
	ID               string       `db:"id" json:"id"`
	EventID          string       `db:"event_id" json:"eventId"`
	StudentID        *string      `db:"student_id" json:"studentId,omitempty"`
	ParentID         *string      `db:"parent_id" json:"parentId,omitempty"`
	Type             DocumentType `db:"type" json:"type"`
	Title            string       `db:"title" json:"title"`
	Content          string       `db:"content" json:"content"`
	ContentHash      string       `db:"content_hash" json:"contentHash"`
	LetterheadID     *string      `db:"letterhead_id" json:"letterheadId,omitempty"`
	RequiredRoles    RoleList     `db:"required_roles" json:"requiredRoles"`
	IsFinalized      bool         `db:"is_finalized" json:"isFinalized"`
	VerificationCode string       `db:"verification_code" json:"verificationCode"`
	ArtifactKey      *string      `db:"artifact_key" json:"artifactKey,omitempty"`
	ArtifactHash     string       `db:"artifact_hash" json:"artifactHash,omitempty"`
	CreatedBy        string       `db:"created_by" json:"createdBy"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	FinalizedAt      *time.Time   `db:"finalized_at" json:"finalizedAt,omitempty"`
}

// DocumentSignature links a SignatureRecord to a document under a role.
type DocumentSignature struct {
	ID          string        `db:"id" json:"id"`
	DocumentID  string        `db:"document_id" json:"documentId"`
	SignatureID string        `db:"signature_id" json:"signatureId"`
	Role        SignatureRole `db:"role" json:"role"`
	SignedAt    time.Time     `db:"signed_at" json:"signedAt"`
}
