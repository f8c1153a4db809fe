package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shulepay/approvals-api/internal/models"
	"github.com/shulepay/approvals-api/pkg/jobs"
)

const (
	jobTypeApprovalDecided = "approval.decided"
)

// ApprovalNotification is the queued payload for one decided approval.
type ApprovalNotification struct {
	ApprovalID string                `json:"approvalId"`
	EventID    string                `json:"eventId"`
	StudentID  string                `json:"studentId"`
	ParentID   string                `json:"parentId"`
	Status     models.ApprovalStatus `json:"status"`
	Reason     string                `json:"reason,omitempty"`
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// NotificationService fans approval decisions out to parents over the
// background queue. Enqueue failures are logged and dropped; delivery
// never blocks or rolls back a transition.
type NotificationService struct {
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(queue jobEnqueuer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger}
}

// ApprovalDecided enqueues a notification job for a decided approval.
func (s *NotificationService) ApprovalDecided(approval *models.Approval) {
	if s.queue == nil || approval == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: jobTypeApprovalDecided,
		Payload: ApprovalNotification{
			ApprovalID: approval.ID,
			EventID:    approval.EventID,
			StudentID:  approval.StudentID,
			ParentID:   approval.ParentID,
			Status:     approval.Status,
			Reason:     approval.RejectionReason,
		},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue approval notification",
			zap.String("approval_id", approval.ID), zap.Error(err))
	}
}

// NotificationDispatcher turns queued payloads into SMS and email
// messages. Delivery transports live behind Sender implementations;
// the default logs the payload, which is enough for local development.
type NotificationDispatcher struct {
	people personReader
	sender NotificationSender
	logger *zap.Logger
}

// NotificationSender delivers one rendered message.
type NotificationSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// NotificationSenderFunc allows plain functions as senders.
type NotificationSenderFunc func(ctx context.Context, recipient, subject, body string) error

// Send implements NotificationSender.
func (f NotificationSenderFunc) Send(ctx context.Context, recipient, subject, body string) error {
	return f(ctx, recipient, subject, body)
}

// NewNotificationDispatcher constructs the queue handler side.
func NewNotificationDispatcher(people personReader, sender NotificationSender, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{people: people, sender: sender, logger: logger}
	if d.sender == nil {
		d.sender = NotificationSenderFunc(func(_ context.Context, recipient, subject, body string) error {
			logger.Info("notification", zap.String("recipient", recipient), zap.String("subject", subject))
			return nil
		})
	}
	return d
}

// Handle is the jobs.Handler for the notifications queue.
func (d *NotificationDispatcher) Handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(ApprovalNotification)
	if !ok {
		d.logger.Warn("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	person, err := d.people.GetPersonContext(ctx, payload.StudentID, payload.ParentID)
	if err != nil {
		return fmt.Errorf("load notification context: %w", err)
	}
	subject, body := composeApprovalMessage(payload, person)
	if err := d.sender.Send(ctx, person.ParentPhone, subject, body); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func composeApprovalMessage(n ApprovalNotification, person *models.PersonContext) (subject, body string) {
	switch n.Status {
	case models.ApprovalStatusApproved:
		subject = "Approval confirmed"
		body = fmt.Sprintf("Dear %s, your approval for %s has been recorded. Thank you.",
			person.ParentName, person.StudentName)
	case models.ApprovalStatusRejected:
		subject = "Approval declined"
		body = fmt.Sprintf("Dear %s, the approval request for %s was declined.", person.ParentName, person.StudentName)
		if n.Reason != "" {
			body += " Reason: " + n.Reason
		}
	case models.ApprovalStatusExpired:
		subject = "Approval expired"
		body = fmt.Sprintf("Dear %s, the approval request for %s expired before a decision was made. Contact the school if you still wish to approve.",
			person.ParentName, person.StudentName)
	default:
		subject = "Approval update"
		body = fmt.Sprintf("Dear %s, the approval for %s is now %s.", person.ParentName, person.StudentName, n.Status)
	}
	return subject, body
}
