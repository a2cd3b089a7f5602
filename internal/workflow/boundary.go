package workflow

import (
	"context"
	"fmt"

	"github.com/pencilops/gradeflow/internal/grader"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/internal/segment"
	"github.com/pencilops/gradeflow/pkg/state"
)

// boundaryDetectNode runs the low-cost first-pass scan over every answer
// page, canonicalizes the observed question labels, and infers student
// segments from question-number restarts.
func boundaryDetectNode(ctx context.Context, rt *Runtime, run *Run, _ EmitFunc) (state.State, error) {
	pages, err := state.Get[[]grader.Page](run.State, KeyPages)
	if err != nil {
		return nil, fmt.Errorf("boundary detect: %w", err)
	}
	tree, err := state.Get[rubric.Tree](run.State, KeyRubric)
	if err != nil {
		return nil, fmt.Errorf("boundary detect: %w", err)
	}

	scans, err := rt.Capability.ScanPages(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("boundary detect: scan pages: %w", err)
	}

	signals := make([]segment.PageSignal, len(scans))
	for i, scan := range scans {
		signals[i] = segment.PageSignal{
			Page:        scan.PageNumber,
			Questions:   canonicalQuestions(scan.Labels),
			StudentName: scan.StudentName,
		}
	}

	detector := segment.NewDetector(rt.Segment, tree.QuestionCount(), rt.Logger)

	segments, err := detector.Detect(signals)
	if err != nil {
		return nil, fmt.Errorf("boundary detect: %w", err)
	}

	rt.Logger.InfoContext(ctx, "boundary detection complete",
		"run", run.ID,
		"segments", len(segments),
		"needs_confirmation", segment.AnyNeedsConfirmation(segments),
	)

	patch := state.New()
	if patch, err = state.Set(patch, KeyScans, scans); err != nil {
		return nil, err
	}
	if patch, err = state.Set(patch, KeySegments, segments); err != nil {
		return nil, err
	}
	return patch, nil
}

// canonicalQuestions maps raw page labels to top-level question numbers,
// preserving reading order. Labels that do not resolve to a number are
// dropped; repeated sightings of the same question are kept because the
// detector relies on observation order.
func canonicalQuestions(labels []string) []int {
	var questions []int
	for _, label := range labels {
		if n, ok := rubric.CanonicalNumber(label); ok {
			questions = append(questions, n)
		}
	}
	return questions
}
