package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/models"
	"github.com/shulepay/approvals-api/internal/service"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
	"github.com/shulepay/approvals-api/pkg/response"
)

// ApprovalHandler exposes the approval workflow endpoints.
type ApprovalHandler struct {
	service *service.ApprovalService
}

// NewApprovalHandler builds a new handler.
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// Request godoc
// @Summary Request approval
// @Description Record a parent's consent decision for an event payment
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.RequestApprovalRequest true "Approval payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals [post]
func (h *ApprovalHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RequestApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}

	approval, err := h.service.RequestApproval(c.Request.Context(), req, service.RequestMeta{
		ParentID:  claims.UserID,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// Reject godoc
// @Summary Reject approval
// @Description Decline a pending approval with a reason
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval ID"
// @Param payload body dto.RejectApprovalRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RejectApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
		return
	}

	approval, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claims, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// Get godoc
// @Summary Get approval
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	approval, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approval, nil)
}

// List godoc
// @Summary List approvals
// @Description List approvals visible to the caller's role
// @Tags Approvals
// @Produce json
// @Param status query string false "Status filter, comma separated"
// @Param eventId query string false "Event filter"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	query := dto.ApprovalQuery{EventID: c.Query("eventId")}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.ApprovalStatus(strings.ToUpper(strings.TrimSpace(s)))
			if status != "" {
				query.Status = append(query.Status, status)
			}
		}
	}

	approvals, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, approvals, nil)
}

// CanPay godoc
// @Summary Payment eligibility
// @Description Report whether payment may proceed for an approval
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /approvals/{id}/can-pay [get]
func (h *ApprovalHandler) CanPay(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	res, err := h.service.CanPay(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Seed godoc
// @Summary Seed pending approvals
// @Description Create pending approvals for every guardian of an event's students
// @Tags Approvals
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/approvals/seed [post]
func (h *ApprovalHandler) Seed(c *gin.Context) {
	seeded, err := h.service.SeedForEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"seeded": seeded}, nil)
}
