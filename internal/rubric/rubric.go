// Package rubric implements the grading-standard model: the parsed rubric
// tree, question label normalization, and the batched parsing stage that
// builds a validated tree from rubric page images.
package rubric

import (
	"github.com/pencilops/gradeflow/internal/grader"
)

// Item is one scoring point beneath a top-level question.
type Item struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	MaxScore    float64  `json:"max_score"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Question is a top-level question with its scoring points. MaxScore is
// always the sum of item maxima, recomputed after every merge.
type Question struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"max_score"`
	Items       []Item  `json:"items"`
}

// QualityCheck is one named pass/fail result from the parse self-report.
type QualityCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// SelfReport carries the parser's assessment of its own output.
type SelfReport struct {
	Confidence float64        `json:"confidence"`
	Checks     []QualityCheck `json:"checks"`
	Notes      []string       `json:"notes,omitempty"`
}

// Tree is the parsed rubric: ordered top-level questions, the recomputed
// total score, and the parse self-report. Immutable once produced; review
// edits replace the tree rather than mutating it.
type Tree struct {
	Questions []Question `json:"questions"`
	Total     float64    `json:"total"`
	Report    SelfReport `json:"report"`
}

// QuestionCount returns the number of top-level questions.
func (t *Tree) QuestionCount() int {
	return len(t.Questions)
}

// Slice converts the tree into the rubric slice shape sent with grading
// requests.
func (t *Tree) Slice() grader.RubricSlice {
	questions := make([]grader.SliceQuestion, len(t.Questions))
	for i, q := range t.Questions {
		questions[i] = grader.SliceQuestion{
			ID:          q.ID,
			Description: q.Description,
			MaxScore:    q.MaxScore,
			Keywords:    questionKeywords(q),
		}
	}

	return grader.RubricSlice{
		Total:     t.Total,
		Questions: questions,
	}
}

// MaxScoreFor returns the declared maximum for a question id, or zero when
// the id is not part of the tree.
func (t *Tree) MaxScoreFor(id string) float64 {
	for _, q := range t.Questions {
		if q.ID == id {
			return q.MaxScore
		}
	}
	return 0
}

func questionKeywords(q Question) []string {
	var keywords []string
	for _, item := range q.Items {
		keywords = append(keywords, item.Keywords...)
	}
	return keywords
}
