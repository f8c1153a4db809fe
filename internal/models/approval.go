package models

import "time"

// ApprovalStatus captures the lifecycle of a parent approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusExpired  ApprovalStatus = "EXPIRED"
)

// Terminal reports whether the status permits no further transitions.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusExpired || s == ApprovalStatusRejected
}

// ApprovalMethod enumerates how a parent may consent.
type ApprovalMethod string

const (
	ApprovalMethodSignature ApprovalMethod = "SIGNATURE"
	ApprovalMethodPin       ApprovalMethod = "PIN"
	ApprovalMethodBoth      ApprovalMethod = "BOTH"
)

// Valid reports whether the method is one of the supported values.
func (m ApprovalMethod) Valid() bool {
	switch m {
	case ApprovalMethodSignature, ApprovalMethodPin, ApprovalMethodBoth:
		return true
	}
	return false
}

// Approval tracks one parent's consent for one student on one event.
// At most one non-rejected row exists per (event, student, parent).
type Approval struct {
	ID              string         `db:"id" json:"id"`
	EventID         string         `db:"event_id" json:"eventId"`
	StudentID       string         `db:"student_id" json:"studentId"`
	ParentID        string         `db:"parent_id" json:"parentId"`
	Status          ApprovalStatus `db:"status" json:"status"`
	Method          ApprovalMethod `db:"method" json:"method"`
	SignatureID     *string        `db:"signature_id" json:"signatureId,omitempty"`
	PinUsed         bool           `db:"pin_used" json:"pinUsed"`
	Notes           string         `db:"notes" json:"notes,omitempty"`
	RejectionReason string         `db:"rejection_reason" json:"rejectionReason,omitempty"`
	IPAddress       string         `db:"ip_address" json:"-"`
	UserAgent       string         `db:"user_agent" json:"-"`
	RequestedAt     time.Time      `db:"requested_at" json:"requestedAt"`
	ApprovedAt      *time.Time     `db:"approved_at" json:"approvedAt,omitempty"`
	ExpiresAt       *time.Time     `db:"expires_at" json:"expiresAt,omitempty"`
}

// CanPay reports payment eligibility: a pure read of the approval state.
func (a *Approval) CanPay() bool {
	return a != nil && a.Status == ApprovalStatusApproved
}

// ApprovalFilter constrains listing queries. TeacherID scopes results
// to students in groups the teacher runs.
type ApprovalFilter struct {
	Status    []ApprovalStatus
	EventID   string
	StudentID string
	ParentID  string
	TeacherID string
	Limit     int
	Offset    int
}
