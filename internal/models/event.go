package models

import "time"

// EventConfig is the approval-relevant slice of a contribution event.
// The payments platform owns the full event record; this service reads
// the fields the workflow and the template engine need.
type EventConfig struct {
	ID                    string     `db:"id" json:"id"`
	SchoolID              string     `db:"school_id" json:"schoolId"`
	Name                  string     `db:"name" json:"name"`
	Description           string     `db:"description" json:"description"`
	Amount                string     `db:"amount" json:"amount"`
	Currency              string     `db:"currency" json:"currency"`
	EventDate             *time.Time `db:"event_date" json:"eventDate,omitempty"`
	DueDate               time.Time  `db:"due_date" json:"dueDate"`
	RequiresApproval      bool       `db:"requires_approval" json:"requiresApproval"`
	RequiresPayment       bool       `db:"requires_payment" json:"requiresPayment"`
	ApprovalBeforePayment bool       `db:"approval_before_payment" json:"approvalBeforePayment"`
	ApprovalDeadline      *time.Time `db:"approval_deadline" json:"approvalDeadline,omitempty"`
	DocumentTemplateID    *string    `db:"document_template_id" json:"documentTemplateId,omitempty"`
	LetterheadID          *string    `db:"letterhead_id" json:"letterheadId,omitempty"`
	IsPublished           bool       `db:"is_published" json:"isPublished"`
}

// GuardianPair identifies an eligible (student, parent) combination for
// an event's scope, used when approvals are seeded on publish.
type GuardianPair struct {
	StudentID string `db:"student_id"`
	ParentID  string `db:"parent_id"`
}

// PersonContext carries the display fields template personalization needs.
type PersonContext struct {
	StudentID     string `db:"student_id"`
	StudentName   string `db:"student_name"`
	StudentNumber string `db:"student_number"`
	StudentClass  string `db:"student_class"`
	ParentID      string `db:"parent_id"`
	ParentName    string `db:"parent_name"`
	ParentPhone   string `db:"parent_phone"`
	SchoolName    string `db:"school_name"`
	SchoolAddress string `db:"school_address"`
}
