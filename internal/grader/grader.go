// Package grader defines the external vision grading capability consumed by
// the workflow: the request/response shapes for rubric extraction, the
// first-pass page scan, and per-segment grading. The capability owns the
// model conversation; callers own batching, timeouts, and retries.
package grader

import "context"

// Page references a rendered page image by its 1-based page number.
type Page struct {
	Number    int    `json:"number"`
	ImagePath string `json:"image_path"`
}

// RubricItem is one scoring point extracted from a rubric page batch.
// Label carries the raw question label as printed ("7(a)", "Q3", "seven");
// canonicalization happens downstream.
type RubricItem struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	MaxScore    float64  `json:"max_score"`
	Keywords    []string `json:"keywords,omitempty"`
}

// RubricExtraction is the result of extracting scoring points from one
// batch of rubric pages.
type RubricExtraction struct {
	Items []RubricItem `json:"items"`
	Notes []string     `json:"notes,omitempty"`
}

// PageScan reports the question labels observed on a single answer page,
// in reading order, from the low-cost first pass. StudentName is populated
// when a name is legible on the page.
type PageScan struct {
	PageNumber  int      `json:"page_number"`
	Labels      []string `json:"labels"`
	StudentName string   `json:"student_name,omitempty"`
}

// SliceQuestion is one top-level question of a rubric slice sent with a
// grading request.
type SliceQuestion struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	MaxScore    float64  `json:"max_score"`
	Keywords    []string `json:"keywords,omitempty"`
}

// RubricSlice is the portion of the rubric a grading task is scored against.
type RubricSlice struct {
	Total     float64         `json:"total"`
	Questions []SliceQuestion `json:"questions"`
}

// QuestionScore is the graded outcome for one question.
type QuestionScore struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback,omitempty"`
}

// Result is the graded outcome for one task's pages.
type Result struct {
	Score      float64         `json:"score"`
	Confidence float64         `json:"confidence"`
	Feedback   string          `json:"feedback,omitempty"`
	Questions  []QuestionScore `json:"questions"`
}

// Capability is the vision/language grading collaborator. Implementations
// must be safe for concurrent calls; the dispatcher invokes Grade from many
// workers at once.
type Capability interface {
	// ExtractRubric pulls scoring-point records from a batch of rubric pages.
	ExtractRubric(ctx context.Context, pages []Page) (*RubricExtraction, error)
	// ScanPages runs the low-cost first pass, reporting question labels
	// observed per page.
	ScanPages(ctx context.Context, pages []Page) ([]PageScan, error)
	// Grade scores the given pages against a rubric slice.
	Grade(ctx context.Context, pages []Page, slice RubricSlice) (*Result, error)
}
