package dto

import (
	"github.com/shulepay/approvals-api/internal/models"
)

// RequestApprovalRequest is the payload a parent submits to consent.
type RequestApprovalRequest struct {
	EventID   string                  `json:"eventId" binding:"required"`
	StudentID string                  `json:"studentId" binding:"required"`
	Method    models.ApprovalMethod   `json:"method" binding:"required"`
	Signature *SignatureInput         `json:"signature,omitempty"`
	Pin       string                  `json:"pin,omitempty"`
	Notes     string                  `json:"notes,omitempty"`
}

// SignatureInput carries either a drawn point sequence or an uploaded
// image (base64) captured on the client.
type SignatureInput struct {
	Points      []models.SignaturePoint `json:"points,omitempty"`
	ImageBase64 string                  `json:"imageBase64,omitempty"`
}

// RejectApprovalRequest captures a rejection with its reason.
type RejectApprovalRequest struct {
	Reason string `json:"reason"`
}

// ApprovalQuery mirrors supported listing filters.
type ApprovalQuery struct {
	Status  []models.ApprovalStatus
	EventID string
}

// CanPayResponse reports payment eligibility for one approval.
type CanPayResponse struct {
	ApprovalID string `json:"approvalId"`
	CanPay     bool   `json:"canPay"`
}
