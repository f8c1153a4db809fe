package models

import "time"

// PinCredential stores the salted hash of a parent's 6-digit approval PIN.
type PinCredential struct {
	ParentID       string     `db:"parent_id" json:"parentId"`
	Salt           string     `db:"salt" json:"-"`
	Hash           string     `db:"hash" json:"-"`
	FailedAttempts int        `db:"failed_attempts" json:"failedAttempts"`
	LockedUntil    *time.Time `db:"locked_until" json:"lockedUntil,omitempty"`
	LastUsedAt     *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	UsageCount     int        `db:"usage_count" json:"usageCount"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// LockedAt reports whether the credential is locked at the given instant.
func (c *PinCredential) LockedAt(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// PinVerification is the outcome of a verification attempt.
type PinVerification struct {
	Valid             bool       `json:"valid"`
	Locked            bool       `json:"locked"`
	AttemptsRemaining int        `json:"attemptsRemaining"`
	LockedUntil       *time.Time `json:"lockedUntil,omitempty"`
}
