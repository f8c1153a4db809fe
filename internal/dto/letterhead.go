package dto

import "github.com/shulepay/approvals-api/internal/models"

// UploadLetterheadRequest accompanies a multipart letterhead upload.
type UploadLetterheadRequest struct {
	Name       string                `json:"name" form:"name" binding:"required"`
	Type       models.LetterheadType `json:"type" form:"type"`
	Department string                `json:"department" form:"department"`
	IsDefault  bool                  `json:"isDefault" form:"isDefault"`
}
