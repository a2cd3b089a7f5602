package config

import (
	"fmt"

	"github.com/pencilops/gradeflow/internal/aggregate"
	"github.com/pencilops/gradeflow/internal/grading"
	"github.com/pencilops/gradeflow/internal/rubric"
	"github.com/pencilops/gradeflow/internal/segment"
	"github.com/pencilops/gradeflow/internal/workflow"
)

var rubricEnv = &rubric.Env{
	BatchSize: "GRADEFLOW_RUBRIC_BATCH_SIZE",
}

var segmentEnv = &segment.Env{
	MonotonicityWeight: "GRADEFLOW_SEGMENT_MONOTONICITY_WEIGHT",
	CountMatchWeight:   "GRADEFLOW_SEGMENT_COUNT_MATCH_WEIGHT",
	UnknownPagePenalty: "GRADEFLOW_SEGMENT_UNKNOWN_PAGE_PENALTY",
	AmbiguityCap:       "GRADEFLOW_SEGMENT_AMBIGUITY_CAP",
	MaxPagesPerSegment: "GRADEFLOW_SEGMENT_MAX_PAGES",
}

var gradingEnv = &grading.Env{
	PoolSize:          "GRADEFLOW_GRADING_POOL_SIZE",
	MaxRetries:        "GRADEFLOW_GRADING_MAX_RETRIES",
	TaskTimeout:       "GRADEFLOW_GRADING_TASK_TIMEOUT",
	SubBatchPageLimit: "GRADEFLOW_GRADING_SUB_BATCH_PAGE_LIMIT",
}

var aggregateEnv = &aggregate.Env{
	ConfidenceThreshold: "GRADEFLOW_AGGREGATE_CONFIDENCE_THRESHOLD",
	PassRatio:           "GRADEFLOW_AGGREGATE_PASS_RATIO",
}

var workflowEnv = &workflow.Env{
	RubricReviewThreshold: "GRADEFLOW_WORKFLOW_RUBRIC_REVIEW_THRESHOLD",
	MandatoryRubricReview: "GRADEFLOW_WORKFLOW_MANDATORY_RUBRIC_REVIEW",
	MandatoryResultReview: "GRADEFLOW_WORKFLOW_MANDATORY_RESULT_REVIEW",
	EventBuffer:           "GRADEFLOW_WORKFLOW_EVENT_BUFFER",
	WorkDir:               "GRADEFLOW_WORKFLOW_WORK_DIR",
}

// PipelineConfig groups the grading pipeline stage configurations.
type PipelineConfig struct {
	Rubric    rubric.Config    `toml:"rubric"`
	Segment   segment.Config   `toml:"segment"`
	Grading   grading.Config   `toml:"grading"`
	Aggregate aggregate.Config `toml:"aggregate"`
	Workflow  workflow.Config  `toml:"workflow"`
}

// Finalize applies defaults, environment variable overrides, and validation
// across every stage config.
func (c *PipelineConfig) Finalize() error {
	if err := c.Rubric.Finalize(rubricEnv); err != nil {
		return fmt.Errorf("rubric: %w", err)
	}
	if err := c.Segment.Finalize(segmentEnv); err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	if err := c.Grading.Finalize(gradingEnv); err != nil {
		return fmt.Errorf("grading: %w", err)
	}
	if err := c.Aggregate.Finalize(aggregateEnv); err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if err := c.Workflow.Finalize(workflowEnv); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	c.Rubric.Merge(&overlay.Rubric)
	c.Segment.Merge(&overlay.Segment)
	c.Grading.Merge(&overlay.Grading)
	c.Aggregate.Merge(&overlay.Aggregate)
	c.Workflow.Merge(&overlay.Workflow)
}
