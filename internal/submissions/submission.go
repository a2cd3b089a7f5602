// Package submissions implements the submission domain for Gradeflow.
// It provides types, data access, and business logic for uploading answer
// scans and rubric documents, page-count extraction, and blob storage
// integration. Workflow runs reference submissions by id at intake.
package submissions

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the two document roles a run consumes.
type Kind string

const (
	KindAnswerSheets Kind = "answer_sheets"
	KindRubric       Kind = "rubric"
)

// Valid reports whether the kind is one of the known roles.
func (k Kind) Valid() bool {
	return k == KindAnswerSheets || k == KindRubric
}

// Submission represents an uploaded document with its metadata and blob
// storage reference.
type Submission struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	PageCount   *int      `json:"page_count"`
	StorageKey  string    `json:"storage_key"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to upload and register a new
// submission. Data holds the raw file bytes. PageCount is optional and may
// be extracted by the caller via pdfcpu; nil values are stored as NULL.
type CreateCommand struct {
	Data        []byte
	Filename    string
	ContentType string
	Kind        Kind
	PageCount   *int
}
