package dto

import "time"

// SetPinRequest sets or replaces the caller's approval PIN.
type SetPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

// VerifyPinRequest checks a PIN without touching any approval.
type VerifyPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

// ResetPinRequest clears attempts and lockout for a parent (admin only).
type ResetPinRequest struct {
	ParentID string `json:"parentId" binding:"required"`
}

// PinStatusResponse reports lockout state without a verification attempt.
type PinStatusResponse struct {
	HasPin            bool       `json:"hasPin"`
	Locked            bool       `json:"locked"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
}
