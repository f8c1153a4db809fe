package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/middleware"
	"github.com/shulepay/approvals-api/internal/models"
	"github.com/shulepay/approvals-api/internal/service"
)

type pinStoreMock struct {
	creds map[string]*models.PinCredential
}

func newPinStoreMock() *pinStoreMock {
	return &pinStoreMock{creds: make(map[string]*models.PinCredential)}
}

func (m *pinStoreMock) Get(_ context.Context, parentID string) (*models.PinCredential, error) {
	cred, ok := m.creds[parentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *cred
	return &clone, nil
}

func (m *pinStoreMock) Upsert(_ context.Context, cred *models.PinCredential) error {
	clone := *cred
	clone.FailedAttempts = 0
	clone.LockedUntil = nil
	m.creds[cred.ParentID] = &clone
	return nil
}

func (m *pinStoreMock) RecordFailure(_ context.Context, parentID string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	cred, ok := m.creds[parentID]
	if !ok {
		return 0, nil, sql.ErrNoRows
	}
	cred.FailedAttempts++
	if cred.FailedAttempts >= maxAttempts {
		cred.LockedUntil = &lockUntil
	}
	return cred.FailedAttempts, cred.LockedUntil, nil
}

func (m *pinStoreMock) RecordSuccess(_ context.Context, parentID string, usedAt time.Time) error {
	cred, ok := m.creds[parentID]
	if !ok {
		return sql.ErrNoRows
	}
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	cred.LastUsedAt = &usedAt
	cred.UsageCount++
	return nil
}

func (m *pinStoreMock) ResetLock(_ context.Context, parentID string) error {
	cred, ok := m.creds[parentID]
	if !ok {
		return sql.ErrNoRows
	}
	cred.FailedAttempts = 0
	cred.LockedUntil = nil
	return nil
}

func pinTestContext(t *testing.T, method, path string, payload interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestPinHandlerSetRequiresAuth(t *testing.T) {
	handler := NewPinHandler(service.NewPinService(newPinStoreMock(), nil, nil))
	c, w := pinTestContext(t, http.MethodPut, "/pins", dto.SetPinRequest{Pin: "482913"})

	handler.Set(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPinHandlerSetInvalidBody(t *testing.T) {
	handler := NewPinHandler(service.NewPinService(newPinStoreMock(), nil, nil))
	c, w := pinTestContext(t, http.MethodPut, "/pins", gin.H{})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Set(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPinHandlerSetAndVerify(t *testing.T) {
	svc := service.NewPinService(newPinStoreMock(), nil, nil)
	handler := NewPinHandler(svc)

	c, w := pinTestContext(t, http.MethodPut, "/pins", dto.SetPinRequest{Pin: "482913"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})
	handler.Set(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)

	c, w = pinTestContext(t, http.MethodPost, "/pins/verify", dto.VerifyPinRequest{Pin: "482913"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})
	handler.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"valid":true`)
}

func TestPinHandlerVerifyWrongPin(t *testing.T) {
	svc := service.NewPinService(newPinStoreMock(), nil, nil)
	handler := NewPinHandler(svc)

	c, w := pinTestContext(t, http.MethodPut, "/pins", dto.SetPinRequest{Pin: "482913"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})
	handler.Set(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)

	c, w = pinTestContext(t, http.MethodPost, "/pins/verify", dto.VerifyPinRequest{Pin: "000000"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})
	handler.Verify(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_PIN")
}

func TestPinHandlerStatusWithoutPin(t *testing.T) {
	handler := NewPinHandler(service.NewPinService(newPinStoreMock(), nil, nil))

	c, w := pinTestContext(t, http.MethodGet, "/pins/status", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"hasPin":false`)
}
