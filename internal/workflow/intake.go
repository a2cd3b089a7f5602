package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/pencilops/gradeflow/pkg/state"
)

// intakeNode fetches the answer scan and rubric document into the run's
// working directory and validates the declared page count. A mismatch here
// fails the run before any model call is made.
func intakeNode(ctx context.Context, rt *Runtime, run *Run, _ EmitFunc) (state.State, error) {
	intake, err := state.Get[Intake](run.State, KeyIntake)
	if err != nil {
		return nil, fmt.Errorf("intake: %w", err)
	}

	dir := rt.Workflow.RunDir(run.ID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("intake: create run directory: %w", err)
	}

	answerPath, answerPages, err := rt.Submissions.Fetch(ctx, intake.AnswerSubmissionID, dir)
	if err != nil {
		return nil, fmt.Errorf("intake: fetch answer submission: %w", err)
	}

	rubricPath, _, err := rt.Submissions.Fetch(ctx, intake.RubricSubmissionID, dir)
	if err != nil {
		return nil, fmt.Errorf("intake: fetch rubric submission: %w", err)
	}

	if intake.DeclaredPageCount > 0 && intake.DeclaredPageCount != answerPages {
		return nil, fmt.Errorf("intake: %w: declared %d, submitted %d",
			ErrPageCountMismatch, intake.DeclaredPageCount, answerPages)
	}

	rt.Logger.InfoContext(ctx, "intake complete",
		"run", run.ID,
		"pages", answerPages,
	)

	patch := state.New()
	if patch, err = state.Set(patch, KeyAnswerPath, answerPath); err != nil {
		return nil, err
	}
	if patch, err = state.Set(patch, KeyRubricPath, rubricPath); err != nil {
		return nil, err
	}
	if patch, err = state.Set(patch, KeyPageCount, answerPages); err != nil {
		return nil, err
	}
	return patch, nil
}
