package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pencilops/gradeflow/pkg/state"
)

// preprocessNode rasterizes both documents into ordered page images under
// the run's working directory.
func preprocessNode(ctx context.Context, rt *Runtime, run *Run, _ EmitFunc) (state.State, error) {
	answerPath, err := state.Get[string](run.State, KeyAnswerPath)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	rubricPath, err := state.Get[string](run.State, KeyRubricPath)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	dir := rt.Workflow.RunDir(run.ID.String())

	pages, err := rt.Rasterizer.Rasterize(ctx, answerPath, filepath.Join(dir, "answers"))
	if err != nil {
		return nil, fmt.Errorf("preprocess: render answer pages: %w", err)
	}

	rubricPages, err := rt.Rasterizer.Rasterize(ctx, rubricPath, filepath.Join(dir, "rubric"))
	if err != nil {
		return nil, fmt.Errorf("preprocess: render rubric pages: %w", err)
	}

	rt.Logger.InfoContext(ctx, "preprocess complete",
		"run", run.ID,
		"answer_pages", len(pages),
		"rubric_pages", len(rubricPages),
	)

	patch := state.New()
	if patch, err = state.Set(patch, KeyPages, pages); err != nil {
		return nil, err
	}
	if patch, err = state.Set(patch, KeyRubricPages, rubricPages); err != nil {
		return nil, err
	}
	return patch, nil
}
