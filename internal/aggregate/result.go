// Package aggregate reconciles the per-task grading output into per-student
// results and a class-level summary, flagging anything that needs a human
// look before export.
package aggregate

// QuestionResult is the reconciled score for one rubric question.
type QuestionResult struct {
	QuestionID string  `json:"question_id"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback,omitempty"`
}

// StudentResult is the final grade for one student segment.
type StudentResult struct {
	Student       string           `json:"student"`
	SegmentIndex  int              `json:"segment_index"`
	Score         float64          `json:"score"`
	MaxScore      float64          `json:"max_score"`
	Confidence    float64          `json:"confidence"`
	Questions     []QuestionResult `json:"questions"`
	Feedback      []string         `json:"feedback,omitempty"`
	FailedTasks   int              `json:"failed_tasks,omitempty"`
	NeedsReview   bool             `json:"needs_review"`
	ReviewReasons []string         `json:"review_reasons,omitempty"`
}

// DiscardedDuplicate records a score that lost a duplicate reconciliation,
// kept for auditability.
type DiscardedDuplicate struct {
	Student        string  `json:"student"`
	QuestionID     string  `json:"question_id"`
	KeptScore      float64 `json:"kept_score"`
	KeptConfidence float64 `json:"kept_confidence"`
	DroppedScore   float64 `json:"dropped_score"`
	DroppedConf    float64 `json:"dropped_confidence"`
	Reason         string  `json:"reason"`
}

// Bucket is one bar of the class score distribution.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ClassSummary captures class-level statistics over all student results.
type ClassSummary struct {
	Students     int      `json:"students"`
	Average      float64  `json:"average"`
	AverageRatio float64  `json:"average_ratio"`
	PassRate     float64  `json:"pass_rate"`
	Distribution []Bucket `json:"distribution"`
	WeakPoints   []string `json:"weak_points,omitempty"`
	StrongPoints []string `json:"strong_points,omitempty"`
}

// Report is the aggregation output for one run.
type Report struct {
	Students   []StudentResult      `json:"students"`
	Duplicates []DiscardedDuplicate `json:"duplicates,omitempty"`
	Summary    ClassSummary         `json:"summary"`
}

// NeedsReview reports whether any student result is flagged for review.
func (r *Report) NeedsReview() bool {
	for _, s := range r.Students {
		if s.NeedsReview {
			return true
		}
	}
	return false
}
