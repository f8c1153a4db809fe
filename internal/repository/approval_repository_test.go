package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func approvalRows(approval *models.Approval) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "event_id", "student_id", "parent_id", "status", "method", "signature_id", "pin_used",
		"notes", "rejection_reason", "ip_address", "user_agent", "requested_at", "approved_at", "expires_at",
	}).AddRow(
		approval.ID, approval.EventID, approval.StudentID, approval.ParentID, approval.Status,
		approval.Method, approval.SignatureID, approval.PinUsed, approval.Notes, approval.RejectionReason,
		approval.IPAddress, approval.UserAgent, approval.RequestedAt, approval.ApprovedAt, approval.ExpiresAt,
	)
}

func TestApprovalRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approvals")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	approval := &models.Approval{
		EventID:   "event-1",
		StudentID: "student-1",
		ParentID:  "parent-1",
		Method:    models.ApprovalMethodSignature,
	}
	require.NoError(t, repo.Create(context.Background(), approval))
	require.NotEmpty(t, approval.ID)
	require.Equal(t, models.ApprovalStatusPending, approval.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, student_id, parent_id")).
		WithArgs(approval.ID).
		WillReturnRows(approvalRows(approval))

	found, err := repo.GetByID(context.Background(), approval.ID)
	require.NoError(t, err)
	require.Equal(t, approval.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryDecideCAS(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("expires_at IS NULL OR expires_at >")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.Decide(context.Background(), DecideApprovalParams{
		ID:         "appr-1",
		Status:     models.ApprovalStatusApproved,
		Method:     models.ApprovalMethodPin,
		PinUsed:    true,
		ApprovedAt: &now,
		Now:        now,
	})
	require.NoError(t, err)

	// A second decision finds no pending row and must surface the lost race.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approvals")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.Decide(context.Background(), DecideApprovalParams{
		ID:         "appr-1",
		Status:     models.ApprovalStatusApproved,
		Method:     models.ApprovalMethodPin,
		ApprovedAt: &now,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	approval := &models.Approval{
		ID: "appr-1", EventID: "event-1", StudentID: "student-1", ParentID: "parent-1",
		Status: models.ApprovalStatusPending, Method: models.ApprovalMethodSignature,
		RequestedAt: time.Now(),
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_id, student_id, parent_id")).
		WithArgs("PENDING", "parent-1").
		WillReturnRows(approvalRows(approval))

	list, err := repo.List(context.Background(), models.ApprovalFilter{
		Status:   []models.ApprovalStatus{models.ApprovalStatusPending},
		ParentID: "parent-1",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "appr-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryExpireOverdue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	expired := &models.Approval{
		ID: "appr-1", EventID: "event-1", StudentID: "student-1", ParentID: "parent-1",
		Status: models.ApprovalStatusExpired, Method: models.ApprovalMethodSignature,
		RequestedAt: past, ExpiresAt: &past,
	}
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE approvals SET status = $1")).
		WithArgs(string(models.ApprovalStatusExpired), string(models.ApprovalStatusPending), now).
		WillReturnRows(approvalRows(expired))

	rows, err := repo.ExpireOverdue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.ApprovalStatusExpired, rows[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
