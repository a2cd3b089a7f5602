package workflow

import (
	"context"
	"fmt"

	"github.com/pencilops/gradeflow/internal/grader"
	"github.com/pencilops/gradeflow/internal/grading"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/internal/segment"
	"github.com/pencilops/gradeflow/pkg/state"
)

// gradeDispatchNode fans grading work out across the worker pool. Every task
// transition is emitted as a task_update event the moment it happens, and
// the node returns only when all tasks reach a terminal state.
func gradeDispatchNode(ctx context.Context, rt *Runtime, run *Run, emit EmitFunc) (state.State, error) {
	pages, err := state.Get[[]grader.Page](run.State, KeyPages)
	if err != nil {
		return nil, fmt.Errorf("grade dispatch: %w", err)
	}
	segments, err := state.Get[[]segment.Segment](run.State, KeySegments)
	if err != nil {
		return nil, fmt.Errorf("grade dispatch: %w", err)
	}
	tree, err := state.Get[rubric.Tree](run.State, KeyRubric)
	if err != nil {
		return nil, fmt.Errorf("grade dispatch: %w", err)
	}

	byNumber := make(map[int]grader.Page, len(pages))
	for _, p := range pages {
		byNumber[p.Number] = p
	}

	segmentPages := make([]grading.SegmentPages, len(segments))
	for i, seg := range segments {
		sp := grading.SegmentPages{Student: seg.Student}
		for _, number := range seg.Pages {
			page, ok := byNumber[number]
			if !ok {
				return nil, fmt.Errorf("grade dispatch: segment %d references unknown page %d", i, number)
			}
			sp.Pages = append(sp.Pages, page)
		}
		segmentPages[i] = sp
	}

	tasks := grading.BuildTasks(segmentPages, rt.Grading.SubBatchPageLimit)

	dispatcher := grading.NewDispatcher(rt.Capability, rt.Grading, rt.Logger)

	results, err := dispatcher.Dispatch(ctx, tasks, tree.Slice(), func(t grading.Task) {
		emit(EventTaskUpdate, t)
	})
	if err != nil {
		return nil, fmt.Errorf("grade dispatch: %w", err)
	}

	rt.Logger.InfoContext(ctx, "grading dispatch complete",
		"run", run.ID,
		"tasks", len(results),
		"failed", len(grading.FailedTasks(results)),
	)

	return state.Set(state.New(), KeyTasks, results)
}
