package dto

import (
	"time"

	"github.com/shulepay/approvals-api/internal/models"
)

// GenerateDocumentRequest creates a personalized document for an event.
type GenerateDocumentRequest struct {
	EventID      string                 `json:"eventId" binding:"required"`
	StudentID    string                 `json:"studentId,omitempty"`
	ParentID     string                 `json:"parentId,omitempty"`
	Type         models.DocumentType    `json:"type" binding:"required"`
	Title        string                 `json:"title,omitempty"`
	Template     string                 `json:"template,omitempty"`
	LetterheadID string                 `json:"letterheadId,omitempty"`
	Required     []models.SignatureRole `json:"requiredSignatures,omitempty"`
}

// AttachSignatureRequest attaches a signature under a role.
type AttachSignatureRequest struct {
	Role      models.SignatureRole `json:"role" binding:"required"`
	Signature SignatureInput       `json:"signature" binding:"required"`
}

// FinalizeResponse reports the frozen artifact and its download token.
type FinalizeResponse struct {
	Document      *models.Document `json:"document"`
	DownloadToken string           `json:"downloadToken"`
	ExpiresAt     time.Time        `json:"expiresAt"`
}

// VerifyResponse is the public certificate verification result.
type VerifyResponse struct {
	Valid            bool       `json:"valid"`
	DocumentID       string     `json:"documentId,omitempty"`
	VerificationCode string     `json:"verificationCode,omitempty"`
	IssuedAt         *time.Time `json:"issuedAt,omitempty"`
	Revoked          bool       `json:"revoked,omitempty"`
}
