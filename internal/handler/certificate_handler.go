package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shulepay/approvals-api/internal/service"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
	"github.com/shulepay/approvals-api/pkg/response"
)

// CertificateHandler exposes certificate issuance and verification.
type CertificateHandler struct {
	service *service.CertificateService
}

// NewCertificateHandler builds a new handler.
func NewCertificateHandler(svc *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{service: svc}
}

// Issue godoc
// @Summary Issue certificate
// @Description Issue a certificate binding a signature to a finalized document
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body object true "Issue payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req struct {
		DocumentID  string `json:"documentId" binding:"required"`
		SignatureID string `json:"signatureId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid certificate payload"))
		return
	}

	cert, err := h.service.Issue(c.Request.Context(), req.DocumentID, req.SignatureID, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, cert)
}

// Revoke godoc
// @Summary Revoke certificate
// @Description Mark a certificate invalid; the revocation is permanent
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body object true "Revocation reason"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/{id}/revoke [post]
func (h *CertificateHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "revocation reason is required"))
		return
	}

	if err := h.service.Revoke(c.Request.Context(), c.Param("id"), req.Reason, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// VerifyByCode godoc
// @Summary Verify document
// @Description Public verification of a document by its printed code
// @Tags Certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} response.Envelope
// @Router /verify/{code} [get]
func (h *CertificateHandler) VerifyByCode(c *gin.Context) {
	res, err := h.service.VerifyByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
