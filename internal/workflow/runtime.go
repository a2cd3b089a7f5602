package workflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/internal/aggregate"
	"github.com/pencilops/gradeflow/internal/grader"
	"github.com/pencilops/gradeflow/internal/grading"
	"github.com/pencilops/gradeflow/internal/rasterize"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/internal/segment"
)

// SubmissionSource fetches an uploaded submission document into a local
// working directory. The returned page count was recorded at upload time.
type SubmissionSource interface {
	Fetch(ctx context.Context, id uuid.UUID, dir string) (path string, pages int, err error)
}

// Exporter publishes the final report payload. The returned key identifies
// the stored artifact.
type Exporter interface {
	Export(ctx context.Context, runID uuid.UUID, data []byte) (key string, err error)
}

// Runtime bundles the dependencies that workflow nodes require.
// It is constructed by higher-level composition code from Infrastructure
// and Domain systems.
type Runtime struct {
	Capability  grader.Capability
	Rasterizer  rasterize.Rasterizer
	Submissions SubmissionSource
	Exporter    Exporter

	Rubric    rubric.Config
	Segment   segment.Config
	Grading   grading.Config
	Aggregate aggregate.Config
	Workflow  Config

	Logger *slog.Logger
}
