package models

import "time"

// SignatureKind distinguishes drawn point captures from uploaded images.
type SignatureKind string

const (
	SignatureKindDrawn SignatureKind = "DRAWN"
	SignatureKindImage SignatureKind = "IMAGE"
)

// SignaturePoint is a single coordinate of a drawn signature stroke.
type SignaturePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SignatureRecord is a verifiable capture of a signer's consent mark.
// Once attached to an approved Approval or a finalized Document it is
// never mutated.
type SignatureRecord struct {
	ID          string        `db:"id" json:"id"`
	SignerID    string        `db:"signer_id" json:"signerId"`
	Kind        SignatureKind `db:"kind" json:"kind"`
	Points      []byte        `db:"points" json:"-"`
	ImageKey    *string       `db:"image_key" json:"imageKey,omitempty"`
	ContentHash string        `db:"content_hash" json:"contentHash"`
	CapturedAt  time.Time     `db:"captured_at" json:"capturedAt"`
	CapturedIP  string        `db:"captured_ip" json:"capturedIp"`
	UserAgent   string        `db:"user_agent" json:"-"`
}

// SignatureRole names the slot a signature fills on a document.
type SignatureRole string

const (
	SignatureRoleParent SignatureRole = "PARENT"
	SignatureRoleAdmin  SignatureRole = "ADMIN"
)

// Valid reports whether the role is one of the supported values.
func (r SignatureRole) Valid() bool {
	return r == SignatureRoleParent || r == SignatureRoleAdmin
}
