package workflow

import (
	"context"
	"fmt"

	"github.com/pencilops/gradeflow/internal/grader"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/pkg/state"
)

// rubricParseNode builds the rubric tree from the rendered rubric pages.
// A total-score mismatch propagates unwrapped so the engine can block the
// run for re-submission instead of failing it.
func rubricParseNode(ctx context.Context, rt *Runtime, run *Run, _ EmitFunc) (state.State, error) {
	pages, err := state.Get[[]grader.Page](run.State, KeyRubricPages)
	if err != nil {
		return nil, fmt.Errorf("rubric parse: %w", err)
	}
	intake, err := state.Get[Intake](run.State, KeyIntake)
	if err != nil {
		return nil, fmt.Errorf("rubric parse: %w", err)
	}

	parser := rubric.NewParser(rt.Capability, rt.Rubric, rt.Logger)

	tree, err := parser.Parse(ctx, pages, intake.DeclaredTotal)
	if err != nil {
		return nil, fmt.Errorf("rubric parse: %w", err)
	}

	rt.Logger.InfoContext(ctx, "rubric parsed",
		"run", run.ID,
		"questions", tree.QuestionCount(),
		"total", tree.Total,
		"confidence", tree.Report.Confidence,
	)

	return state.Set(state.New(), KeyRubric, tree)
}
