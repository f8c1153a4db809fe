package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shulepay/approvals-api/internal/dto"
	"github.com/shulepay/approvals-api/internal/service"
	appErrors "github.com/shulepay/approvals-api/pkg/errors"
	"github.com/shulepay/approvals-api/pkg/response"
)

// LetterheadHandler exposes school letterhead endpoints.
type LetterheadHandler struct {
	service *service.LetterheadService
}

// NewLetterheadHandler builds a new handler.
func NewLetterheadHandler(svc *service.LetterheadService) *LetterheadHandler {
	return &LetterheadHandler{service: svc}
}

// Upload godoc
// @Summary Upload letterhead
// @Description Upload a letterhead image for a school
// @Tags Letterheads
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "School ID"
// @Param file formData file true "Letterhead image"
// @Param name formData string true "Letterhead name"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schools/{id}/letterheads [post]
func (h *LetterheadHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UploadLetterheadRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid letterhead payload"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "letterhead file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open uploaded file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}

	letterhead, err := h.service.Upload(c.Request.Context(), c.Param("id"), claims.UserID, req, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, letterhead)
}

// List godoc
// @Summary List letterheads
// @Tags Letterheads
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id}/letterheads [get]
func (h *LetterheadHandler) List(c *gin.Context) {
	letterheads, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, letterheads, nil)
}

// SetDefault godoc
// @Summary Set default letterhead
// @Description Mark one letterhead as the school default
// @Tags Letterheads
// @Produce json
// @Param id path string true "School ID"
// @Param letterheadId path string true "Letterhead ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schools/{id}/letterheads/{letterheadId}/default [put]
func (h *LetterheadHandler) SetDefault(c *gin.Context) {
	if err := h.service.SetDefault(c.Request.Context(), c.Param("id"), c.Param("letterheadId")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Delete godoc
// @Summary Delete letterhead
// @Description Remove a non-default letterhead and its stored file
// @Tags Letterheads
// @Produce json
// @Param id path string true "School ID"
// @Param letterheadId path string true "Letterhead ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schools/{id}/letterheads/{letterheadId} [delete]
func (h *LetterheadHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), c.Param("letterheadId"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
