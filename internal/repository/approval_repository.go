package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shulepay/approvals-api/internal/models"
)

const approvalColumns = `id, event_id, student_id, parent_id, status, method, signature_id, pin_used,
       notes, rejection_reason, ip_address, user_agent, requested_at, approved_at, expires_at`

// ApprovalRepository persists approval workflow state.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a new pending approval row. The partial unique index on
// (event_id, student_id, parent_id) WHERE status <> 'REJECTED' enforces
// the at-most-one-live-approval invariant at the database level.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalStatusPending
	}
	if approval.RequestedAt.IsZero() {
		approval.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approvals
	(id, event_id, student_id, parent_id, status, method, signature_id, pin_used, notes, rejection_reason, ip_address, user_agent, requested_at, approved_at, expires_at)
	VALUES (:id, :event_id, :student_id, :parent_id, :status, :method, :signature_id, :pin_used, :notes, :rejection_reason, :ip_address, :user_agent, :requested_at, :approved_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, approval); err != nil {
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// GetByID fetches an approval by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals WHERE id = $1`, approvalColumns)
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, id); err != nil {
		return nil, err
	}
	return &approval, nil
}

// GetLiveByTriple returns the non-rejected approval for the
// (event, student, parent) triple, if one exists.
func (r *ApprovalRepository) GetLiveByTriple(ctx context.Context, eventID, studentID, parentID string) (*models.Approval, error) {
	query := fmt.Sprintf(`SELECT %s FROM approvals
	WHERE event_id = $1 AND student_id = $2 AND parent_id = $3 AND status <> $4
	ORDER BY requested_at DESC LIMIT 1`, approvalColumns)
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, eventID, studentID, parentID, models.ApprovalStatusRejected); err != nil {
		return nil, err
	}
	return &approval, nil
}

// List returns approvals matching the filter (latest first).
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT ` + approvalColumns + ` FROM approvals`)

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.EventID != "" {
		args = append(args, filter.EventID)
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		conditions = append(conditions, fmt.Sprintf("parent_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM student_groups sg
			JOIN groups g ON g.id = sg.group_id
			WHERE sg.student_id = approvals.student_id AND g.teacher_id = $%d)`, len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, nil
}

// DecideApprovalParams groups the columns written by a decision.
type DecideApprovalParams struct {
	ID              string
	Status          models.ApprovalStatus
	Method          models.ApprovalMethod
	SignatureID     *string
	PinUsed         bool
	Notes           string
	RejectionReason string
	ApprovedAt      *time.Time
	Now             time.Time
}

// Decide transitions a pending approval to a terminal state. The update
// is guarded by status = 'PENDING' and an unexpired deadline so
// concurrent callers race on the row and exactly one wins; the loser
// sees sql.ErrNoRows, as does any caller past expires_at.
func (r *ApprovalRepository) Decide(ctx context.Context, params DecideApprovalParams) error {
	query := fmt.Sprintf(`UPDATE approvals
	SET status = :status, method = :method, signature_id = :signature_id, pin_used = :pin_used,
	    notes = :notes, rejection_reason = :rejection_reason, approved_at = :approved_at
	WHERE id = :id AND status = '%s' AND (expires_at IS NULL OR expires_at > :now)`, models.ApprovalStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"method":           params.Method,
		"signature_id":     params.SignatureID,
		"pin_used":         params.PinUsed,
		"notes":            params.Notes,
		"rejection_reason": params.RejectionReason,
		"approved_at":      params.ApprovedAt,
		"now":              params.Now,
	})
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approval decide rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExpireOverdue transitions every pending approval past its deadline to
// EXPIRED and returns the affected rows for notification fan-out.
func (r *ApprovalRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]models.Approval, error) {
	query := fmt.Sprintf(`UPDATE approvals SET status = $1
	WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3
	RETURNING %s`, approvalColumns)
	var expired []models.Approval
	if err := r.db.SelectContext(ctx, &expired, query,
		models.ApprovalStatusExpired, models.ApprovalStatusPending, now); err != nil {
		return nil, fmt.Errorf("expire overdue approvals: %w", err)
	}
	return expired, nil
}
