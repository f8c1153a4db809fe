package models

import "time"

// LetterheadType enumerates letterhead categories.
type LetterheadType string

const (
	LetterheadTypeOfficial   LetterheadType = "OFFICIAL"
	LetterheadTypeDepartment LetterheadType = "DEPARTMENT"
	LetterheadTypeEvent      LetterheadType = "EVENT"
	LetterheadTypeStamp      LetterheadType = "STAMP"
)

// Letterhead is a school-branded header applied to generated documents.
type Letterhead struct {
	ID         string         `db:"id" json:"id"`
	SchoolID   string         `db:"school_id" json:"schoolId"`
	Name       string         `db:"name" json:"name"`
	Type       LetterheadType `db:"type" json:"type"`
	Department string         `db:"department" json:"department,omitempty"`
	FileKey    string         `db:"file_key" json:"fileKey"`
	FileType   string         `db:"file_type" json:"fileType"`
	FileSize   int64          `db:"file_size" json:"fileSize"`
	IsDefault  bool           `db:"is_default" json:"isDefault"`
	UploadedBy string         `db:"uploaded_by" json:"uploadedBy"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}
