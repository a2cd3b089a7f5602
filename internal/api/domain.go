package api

import (
	"github.com/pencilops/gradeflow/internal/grader"
	"github.com/pencilops/gradeflow/internal/rasterize"
	"github.com/pencilops/gradeflow/internal/runs"
	"github.com/pencilops/gradeflow/internal/submissions"
	"github.com/pencilops/gradeflow/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Submissions submissions.System
	Runs        *runs.Store
	Engine      *workflow.Engine
}

// NewDomain creates all domain systems from the API runtime: the submission
// store, the run checkpoint store, and the workflow engine wired to the
// vision grading capability.
func NewDomain(runtime *Runtime) *Domain {
	subsSystem := submissions.New(
		runtime.Database.Connection(),
		runtime.Storage,
		runtime.Logger,
		runtime.Pagination,
	)

	runStore := runs.NewStore(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	engine := workflow.NewEngine(&workflow.Runtime{
		Capability:  grader.NewVision(runtime.Agent, runtime.Logger),
		Rasterizer:  rasterize.New(),
		Submissions: subsSystem,
		Exporter:    runs.NewBlobExporter(runtime.Storage),
		Rubric:      runtime.Pipeline.Rubric,
		Segment:     runtime.Pipeline.Segment,
		Grading:     runtime.Pipeline.Grading,
		Aggregate:   runtime.Pipeline.Aggregate,
		Workflow:    runtime.Pipeline.Workflow,
		Logger:      runtime.Logger,
	}, runStore)

	return &Domain{
		Submissions: subsSystem,
		Runs:        runStore,
		Engine:      engine,
	}
}
