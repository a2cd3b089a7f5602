package workflow

import (
	"context"

	"github.com/pencilops/gradeflow/pkg/state"
)

// Node names, in execution order.
const (
	NodeIntake         = "intake"
	NodePreprocess     = "preprocess"
	NodeRubricParse    = "rubric_parse"
	NodeRubricReview   = "rubric_review"
	NodeBoundaryDetect = "boundary_detect"
	NodeGradeDispatch  = "grade_dispatch"
	NodeAggregate      = "aggregate"
	NodeResultReview   = "result_review"
	NodeExport         = "export"
)

// EmitFunc publishes a progress event attributed to the executing node.
type EmitFunc func(kind EventKind, payload any)

// NodeFunc executes one node against the accumulated state and returns the
// output patch to merge. It must not mutate run.State directly.
type NodeFunc func(ctx context.Context, rt *Runtime, run *Run, emit EmitFunc) (state.State, error)

// Descriptor declares one node of the fixed sequence: its input-field
// requirements, its output-field contract, and either an execution function
// or review-gate semantics. The driver walks the table in order and runs the
// first node whose outputs are missing; a node only executes once its
// declared inputs are all present.
type Descriptor struct {
	Name     string
	Requires []string
	Produces []string

	// Run executes a regular node. Nil for review gates.
	Run NodeFunc

	// Review marks an interrupt point. Skip reports whether the gate can be
	// auto-approved; Payload builds the review_required event body shown to
	// the reviewer.
	Review  bool
	Skip    func(rt *Runtime, s state.State) bool
	Payload func(s state.State) any
}

// descriptors returns the workflow's node table. The sequence is fixed;
// conditional behavior lives in the review gates' Skip predicates, never in
// the table shape.
func descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:     NodeIntake,
			Requires: []string{KeyIntake},
			Produces: []string{KeyAnswerPath, KeyRubricPath, KeyPageCount},
			Run:      intakeNode,
		},
		{
			Name:     NodePreprocess,
			Requires: []string{KeyAnswerPath, KeyRubricPath},
			Produces: []string{KeyPages, KeyRubricPages},
			Run:      preprocessNode,
		},
		{
			Name:     NodeRubricParse,
			Requires: []string{KeyRubricPages, KeyIntake},
			Produces: []string{KeyRubric},
			Run:      rubricParseNode,
		},
		{
			Name:     NodeRubricReview,
			Requires: []string{KeyRubric},
			Produces: []string{KeyRubricDecision},
			Review:   true,
			Skip:     skipRubricReview,
			Payload:  rubricReviewPayload,
		},
		{
			Name:     NodeBoundaryDetect,
			Requires: []string{KeyPages, KeyRubric},
			Produces: []string{KeyScans, KeySegments},
			Run:      boundaryDetectNode,
		},
		{
			Name:     NodeGradeDispatch,
			Requires: []string{KeySegments, KeyRubric, KeyPages},
			Produces: []string{KeyTasks},
			Run:      gradeDispatchNode,
		},
		{
			Name:     NodeAggregate,
			Requires: []string{KeyTasks, KeyRubric},
			Produces: []string{KeyReport},
			Run:      aggregateNode,
		},
		{
			Name:     NodeResultReview,
			Requires: []string{KeyReport},
			Produces: []string{KeyResultDecision},
			Review:   true,
			Skip:     skipResultReview,
			Payload:  resultReviewPayload,
		},
		{
			Name:     NodeExport,
			Requires: []string{KeyReport},
			Produces: []string{KeyExport},
			Run:      exportNode,
		},
	}
}

// next returns the first descriptor whose outputs are not yet present in s,
// or ok=false when every node has produced its contract.
func next(s state.State) (Descriptor, bool) {
	for _, d := range descriptors() {
		if !s.Has(d.Produces...) {
			return d, true
		}
	}
	return Descriptor{}, false
}
