package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shulepay/approvals-api/internal/models"
)

// EventRepository reads the approval-relevant slice of contribution
// events and the guardian relationships they scope over. The payments
// platform owns these tables; every cross-entity read here is an
// explicit query, never a lazy load.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// GetConfig returns the approval configuration for an event.
func (r *EventRepository) GetConfig(ctx context.Context, eventID string) (*models.EventConfig, error) {
	const query = `SELECT id, school_id, name, description, amount, currency, event_date, due_date,
       requires_approval, requires_payment, approval_before_payment, approval_deadline,
       document_template_id, letterhead_id, is_published
	FROM contribution_events WHERE id = $1`
	var cfg models.EventConfig
	if err := r.db.GetContext(ctx, &cfg, query, eventID); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsGuardianOf reports whether the parent is a registered guardian of
// the student.
func (r *EventRepository) IsGuardianOf(ctx context.Context, parentID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM student_parents WHERE parent_id = $1 AND student_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, parentID, studentID); err != nil {
		return false, fmt.Errorf("check guardian relationship: %w", err)
	}
	return ok, nil
}

// ListGuardianPairs returns every (student, parent) pair in the event's
// group scope, used to seed pending approvals on publish.
func (r *EventRepository) ListGuardianPairs(ctx context.Context, eventID string) ([]models.GuardianPair, error) {
	const query = `SELECT DISTINCT sg.student_id, sp.parent_id
	FROM event_groups eg
	JOIN student_groups sg ON sg.group_id = eg.group_id
	JOIN student_parents sp ON sp.student_id = sg.student_id
	WHERE eg.event_id = $1`
	var pairs []models.GuardianPair
	if err := r.db.SelectContext(ctx, &pairs, query, eventID); err != nil {
		return nil, fmt.Errorf("list guardian pairs: %w", err)
	}
	return pairs, nil
}

// GetPersonContext loads the display fields used to personalize a
// document for one student/parent pair.
func (r *EventRepository) GetPersonContext(ctx context.Context, studentID, parentID string) (*models.PersonContext, error) {
	const query = `SELECT s.id AS student_id, s.full_name AS student_name, s.student_number,
       COALESCE(string_agg(g.name, ', '), '') AS student_class,
       u.id AS parent_id, u.full_name AS parent_name, u.phone_number AS parent_phone,
       sc.name AS school_name, sc.address AS school_address
	FROM students s
	JOIN users u ON u.id = $2
	JOIN schools sc ON sc.id = s.school_id
	LEFT JOIN student_groups sg ON sg.student_id = s.id
	LEFT JOIN groups g ON g.id = sg.group_id
	WHERE s.id = $1
	GROUP BY s.id, s.full_name, s.student_number, u.id, u.full_name, u.phone_number, sc.name, sc.address`
	var pc models.PersonContext
	if err := r.db.GetContext(ctx, &pc, query, studentID, parentID); err != nil {
		return nil, err
	}
	return &pc, nil
}
