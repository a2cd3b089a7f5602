// Package segment infers which contiguous page ranges of a multi-student
// scanned document belong to the same student, by detecting question-number
// sequence resets in the first-pass page scan.
package segment

// PageSignal carries the grading signals observed on one page: the canonical
// question numbers in reading order, and the student name when one was
// legible. Page is the caller's page index.
type PageSignal struct {
	Page        int    `json:"page"`
	Questions   []int  `json:"questions"`
	StudentName string `json:"student_name,omitempty"`
}

// Segment is a contiguous page range inferred to belong to one student.
// Student holds the resolved name or a generated placeholder. Pages across
// all segments of a run are pairwise disjoint and cover the full page range.
type Segment struct {
	Student           string  `json:"student"`
	Pages             []int   `json:"pages"`
	Confidence        float64 `json:"confidence"`
	NeedsConfirmation bool    `json:"needs_confirmation"`
}

// PageCount returns the number of pages in the segment.
func (s *Segment) PageCount() int {
	return len(s.Pages)
}

// AnyNeedsConfirmation reports whether any segment requires human
// confirmation before grading dispatch.
func AnyNeedsConfirmation(segments []Segment) bool {
	for _, s := range segments {
		if s.NeedsConfirmation {
			return true
		}
	}
	return false
}
