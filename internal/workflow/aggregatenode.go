package workflow

import (
	"context"
	"fmt"

	"github.com/pencilops/gradeflow/internal/aggregate"
	"github.com/pencilops/gradeflow/internal/grading"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/pkg/state"
)

// aggregateNode reconciles the terminal task results into per-student scores
// and the class summary.
func aggregateNode(ctx context.Context, rt *Runtime, run *Run, _ EmitFunc) (state.State, error) {
	tasks, err := state.Get[[]grading.Task](run.State, KeyTasks)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	tree, err := state.Get[rubric.Tree](run.State, KeyRubric)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	aggregator := aggregate.NewAggregator(rt.Aggregate, rt.Logger)

	report, err := aggregator.Aggregate(tasks, &tree)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	rt.Logger.InfoContext(ctx, "aggregation complete",
		"run", run.ID,
		"students", len(report.Students),
		"needs_review", report.NeedsReview(),
	)

	return state.Set(state.New(), KeyReport, report)
}
