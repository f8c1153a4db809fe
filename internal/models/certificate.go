package models

import "time"

// Certificate binds one SignatureRecord to one Document and an issuer
// identity. The fingerprint is recomputed from current state on every
// verification; any mismatch implies tampering.
type Certificate struct {
	ID             string     `db:"id" json:"id"`
	DocumentID     string     `db:"document_id" json:"documentId"`
	SignatureID    string     `db:"signature_id" json:"signatureId"`
	IssuerIdentity string     `db:"issuer_identity" json:"issuerIdentity"`
	Fingerprint    string     `db:"fingerprint" json:"fingerprint"`
	Revoked        bool       `db:"revoked" json:"revoked"`
	RevokedReason  string     `db:"revoked_reason" json:"revokedReason,omitempty"`
	IssuedAt       time.Time  `db:"issued_at" json:"issuedAt"`
	LastVerifiedAt *time.Time `db:"last_verified_at" json:"lastVerifiedAt,omitempty"`
	UsageCount     int        `db:"usage_count" json:"usageCount"`
}
