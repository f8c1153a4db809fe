package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
)

type fakePinStore struct {
	creds map[string]*models.PinCredential
}

func newFakePinStore() *fakePinStore {
	return &fakePinStore{creds: make(map[string]*models.PinCredential)}
}

func (f *fakePinStore) Get(_ context.Context, parentID string) (*models.PinCredential, error) {
	cred, ok := f.creds[parentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *cred
	return &clone, nil
}

func (f *fakePinStore) Upsert(_ context.Context, cred *models.PinCredential) error {
	stored := *cred
	stored.FailedAttempts = 0
	stored.LockedUntil = nil
	f.creds[cred.ParentID] = &stored
	return nil
}

func (f *fakePinStore) RecordFailure(_ context.Context, parentID string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	cred, ok := f.creds[parentID]
	if !ok {
		return 0, nil, sql.ErrNoRows
	}
	cred.FailedAttempts++
	if cred.FailedAttempts >= maxAttempts {
		until := lockUntil
		cred.LockedUntil = &until
	}
	return cred.FailedAttempts, cred.LockedUntil, nil
}

func (f *fakePinStore) RecordSuccess(_ context.Context, parentID string, usedAt time.Time) error {
	cred, ok := f.creds[parentID]
	if !ok {
		return sql.ErrNoRows
	}
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	cred.LastUsedAt = &usedAt
	cred.UsageCount++
	return nil
}

func (f *fakePinStore) ResetLock(_ context.Context, parentID string) error {
	cred, ok := f.creds[parentID]
	if !ok {
		return sql.ErrNoRows
	}
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	return nil
}

type captureAudit struct {
	logs []*models.AuditLog
}

func (c *captureAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	c.logs = append(c.logs, log)
	return nil
}

func TestPinServiceSetAndVerify(t *testing.T) {
	store := newFakePinStore()
	svc := NewPinService(store, &captureAudit{}, nil)

	err := svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "12345"})
	require.Error(t, err, "a five digit PIN must be rejected")

	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "123456"}))

	result, err := svc.Verify(context.Background(), "parent-1", "123456")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 1, store.creds["parent-1"].UsageCount)
}

func TestPinServiceVerifyWithoutCredential(t *testing.T) {
	store := newFakePinStore()
	svc := NewPinService(store, nil, nil)

	_, err := svc.Verify(context.Background(), "parent-none", "123456")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code, "a missing credential is not a wrong guess")
}

func TestPinServiceSameRawPinDistinctHashes(t *testing.T) {
	store := newFakePinStore()
	svc := NewPinService(store, nil, nil)

	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "123456"}))
	first := store.creds["parent-1"].Hash
	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "123456"}))
	require.NotEqual(t, first, store.creds["parent-1"].Hash, "fresh salt must produce a fresh hash")
}

func TestPinServiceLockoutAfterMaxAttempts(t *testing.T) {
	store := newFakePinStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewPinService(store, &captureAudit{}, nil,
		WithPinAttemptPolicy(3, 30*time.Minute),
		WithPinClock(func() time.Time { return now }),
	)
	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "123456"}))

	for i := 0; i < 2; i++ {
		_, err := svc.Verify(context.Background(), "parent-1", "000000")
		require.Error(t, err)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		require.Equal(t, appErrors.ErrInvalidPin.Code, appErr.Code)
	}

	// Third wrong guess trips the lockout.
	_, err := svc.Verify(context.Background(), "parent-1", "000000")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrPinLocked.Code, appErr.Code)

	// The correct PIN during the lockout window still fails locked.
	_, err = svc.Verify(context.Background(), "parent-1", "123456")
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrPinLocked.Code, appErr.Code)

	// After the window the correct PIN succeeds and resets attempts.
	now = now.Add(31 * time.Minute)
	result, err := svc.Verify(context.Background(), "parent-1", "123456")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, 0, store.creds["parent-1"].FailedAttempts)
}

func TestPinServiceSetPinClearsLockout(t *testing.T) {
	store := newFakePinStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := NewPinService(store, nil, nil,
		WithPinAttemptPolicy(1, time.Hour),
		WithPinClock(func() time.Time { return now }),
	)
	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "123456"}))
	_, err := svc.Verify(context.Background(), "parent-1", "999999")
	require.Error(t, err)

	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "654321"}))
	result, err := svc.Verify(context.Background(), "parent-1", "654321")
	require.NoError(t, err)
	require.True(t, result.Valid)
}

func TestPinServiceStatus(t *testing.T) {
	store := newFakePinStore()
	svc := NewPinService(store, nil, nil, WithPinAttemptPolicy(3, 30*time.Minute))

	status, err := svc.Status(context.Background(), "parent-1")
	require.NoError(t, err)
	require.False(t, status.HasPin)
	require.Equal(t, 3, status.AttemptsRemaining)

	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "123456"}))
	_, err = svc.Verify(context.Background(), "parent-1", "000000")
	require.Error(t, err)

	status, err = svc.Status(context.Background(), "parent-1")
	require.NoError(t, err)
	require.True(t, status.HasPin)
	require.False(t, status.Locked)
	require.Equal(t, 2, status.AttemptsRemaining)
}

func TestPinServiceReset(t *testing.T) {
	store := newFakePinStore()
	audit := &captureAudit{}
	svc := NewPinService(store, audit, nil, WithPinAttemptPolicy(1, time.Hour))

	err := svc.Reset(context.Background(), "parent-absent", "admin-1")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	require.NoError(t, svc.SetPin(context.Background(), "parent-1", dto.SetPinRequest{Pin: "123456"}))
	_, err = svc.Verify(context.Background(), "parent-1", "000000")
	require.Error(t, err)

	require.NoError(t, svc.Reset(context.Background(), "parent-1", "admin-1"))
	result, err := svc.Verify(context.Background(), "parent-1", "123456")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, models.AuditActionPinReset, audit.logs[len(audit.logs)-1].Action)
}
