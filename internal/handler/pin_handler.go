package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/service"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
	"github.com/shulepay/approvals-api/pkg/response"
)

// PinHandler exposes approval PIN endpoints.
type PinHandler struct {
	service *service.PinService
}

// NewPinHandler builds a new handler.
func NewPinHandler(svc *service.PinService) *PinHandler {
	return &PinHandler{service: svc}
}

// Set godoc
// @Summary Set approval PIN
// @Description Set or replace the caller's approval PIN
// @Tags PIN
// @Accept json
// @Produce json
// @Param payload body dto.SetPinRequest true "PIN payload"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pins [put]
func (h *PinHandler) Set(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SetPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pin payload"))
		return
	}

	if err := h.service.SetPin(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Verify godoc
// @Summary Verify approval PIN
// @Description Check the caller's PIN without deciding any approval
// @Tags PIN
// @Accept json
// @Produce json
// @Param payload body dto.VerifyPinRequest true "PIN payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /pins/verify [post]
func (h *PinHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.VerifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pin payload"))
		return
	}

	verification, err := h.service.Verify(c.Request.Context(), claims.UserID, req.Pin)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, verification, nil)
}

// Status godoc
// @Summary Approval PIN status
// @Description Report whether the caller has a PIN and its lockout state
// @Tags PIN
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pins/status [get]
func (h *PinHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// Reset godoc
// @Summary Reset a parent's PIN lockout
// @Description Clear failed attempts and lockout for a parent
// @Tags PIN
// @Accept json
// @Produce json
// @Param payload body dto.ResetPinRequest true "Reset payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pins/reset [post]
func (h *PinHandler) Reset(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ResetPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}

	if err := h.service.Reset(c.Request.Context(), req.ParentID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
