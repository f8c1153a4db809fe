package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/middleware"
	"github.com/shulepay/approvals-api/internal/models"
	"github.com/shulepay/approvals-api/internal/service"
)

func TestApprovalHandlerRequestRequiresAuth(t *testing.T) {
	handler := NewApprovalHandler(service.NewApprovalService(nil, nil, nil, nil, nil, nil, nil))
	c, w := pinTestContext(t, http.MethodPost, "/approvals", dto.RequestApprovalRequest{
		EventID:   "event-1",
		StudentID: "student-1",
		Method:    models.ApprovalMethodPin,
		Pin:       "482913",
	})

	handler.Request(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApprovalHandlerRequestInvalidBody(t *testing.T) {
	handler := NewApprovalHandler(service.NewApprovalService(nil, nil, nil, nil, nil, nil, nil))
	c, w := pinTestContext(t, http.MethodPost, "/approvals", gin.H{"eventId": "event-1"})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "parent-1", Role: models.RoleParent})

	handler.Request(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerDownloadRequiresToken(t *testing.T) {
	handler := NewDocumentHandler(nil)
	c, w := pinTestContext(t, http.MethodGet, "/documents/download", nil)

	handler.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
