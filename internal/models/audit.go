package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionApprovalRequest  = "APPROVAL_REQUEST"
	AuditActionApprovalSeed     = "APPROVAL_SEED"
	AuditActionApprovalApproved = "APPROVAL_APPROVED"
	AuditActionApprovalRejected = "APPROVAL_REJECTED"
	AuditActionApprovalExpired  = "APPROVAL_EXPIRED"
	AuditActionPinSet           = "PIN_SET"
	AuditActionPinReset         = "PIN_RESET"
	AuditActionPinLocked        = "PIN_LOCKED"
	AuditActionDocumentCreate   = "DOCUMENT_CREATE"
	AuditActionDocumentSign     = "DOCUMENT_SIGN"
	AuditActionDocumentFinalize = "DOCUMENT_FINALIZE"
	AuditActionCertificateIssue = "CERTIFICATE_ISSUE"
	AuditActionCertRevoke       = "CERTIFICATE_REVOKE"
	AuditActionLetterheadUpload = "LETTERHEAD_UPLOAD"
	AuditActionLetterheadDelete = "LETTERHEAD_DELETE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
