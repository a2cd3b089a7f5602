package workflow

import (
	"github.com/pencilops/gradeflow/internal/aggregate"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/internal/segment"
	"github.com/pencilops/gradeflow/pkg/state"
)

// skipRubricReview auto-approves the rubric gate when review is not
// mandatory and the parse self-report meets the confidence threshold.
func skipRubricReview(rt *Runtime, s state.State) bool {
	if rt.Workflow.MandatoryRubricReview {
		return false
	}

	tree, err := state.Get[rubric.Tree](s, KeyRubric)
	if err != nil {
		return false
	}
	return tree.Report.Confidence >= rt.Workflow.RubricReviewThreshold
}

// rubricReviewPayload surfaces the parsed tree and its self-report to the
// reviewer.
func rubricReviewPayload(s state.State) any {
	tree, err := state.Get[rubric.Tree](s, KeyRubric)
	if err != nil {
		return nil
	}
	return tree
}

// skipResultReview auto-approves the result gate only when review is not
// mandatory, no student result is flagged, and boundary detection raised no
// confirmation flags. Segmentation ambiguity never stops the run, but it
// always forces this gate.
func skipResultReview(rt *Runtime, s state.State) bool {
	if rt.Workflow.MandatoryResultReview {
		return false
	}

	report, err := state.Get[aggregate.Report](s, KeyReport)
	if err != nil {
		return false
	}
	if report.NeedsReview() {
		return false
	}

	segments, err := state.Get[[]segment.Segment](s, KeySegments)
	if err != nil {
		return false
	}
	return !segment.AnyNeedsConfirmation(segments)
}

type resultReview struct {
	Report   aggregate.Report  `json:"report"`
	Segments []segment.Segment `json:"segments"`
}

// resultReviewPayload surfaces the aggregated report alongside the inferred
// segments so the reviewer sees why a result was flagged.
func resultReviewPayload(s state.State) any {
	report, err := state.Get[aggregate.Report](s, KeyReport)
	if err != nil {
		return nil
	}
	segments, _ := state.Get[[]segment.Segment](s, KeySegments)

	return resultReview{Report: report, Segments: segments}
}
