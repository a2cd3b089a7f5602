// Package workflow implements the grading run state machine: a fixed node
// sequence walked by a generic driver, checkpointed after every transition,
// with suspend/resume review gates and live progress broadcasting.
package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/pkg/state"
)

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusSuspended RunStatus = "suspended"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Outcome is the terminal result of one node execution attempt.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeError       Outcome = "error"
	OutcomeInterrupted Outcome = "interrupted"
)

// NodeExecution records one attempt at one node. Attempts for a node are
// monotonically increasing; only the latest attempt's output is merged.
type NodeExecution struct {
	Node      string    `json:"node"`
	Attempt   int       `json:"attempt"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Outcome   Outcome   `json:"outcome,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Run is the checkpointed record of one workflow execution. The engine is
// the only writer; everything needed to resume after a restart lives here.
type Run struct {
	ID          uuid.UUID       `json:"id"`
	Status      RunStatus       `json:"status"`
	CurrentNode string          `json:"current_node"`
	State       state.State     `json:"state"`
	Executions  []NodeExecution `json:"executions"`
	EventSeq    uint64          `json:"event_seq"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (r *Run) attempt(node string) int {
	n := 0
	for _, e := range r.Executions {
		if e.Node == node {
			n++
		}
	}
	return n + 1
}

// Intake is the submission payload that seeds a run.
type Intake struct {
	// AnswerSubmissionID references the uploaded multi-student answer scan.
	AnswerSubmissionID uuid.UUID `json:"answer_submission_id"`
	// RubricSubmissionID references the uploaded grading-standard document.
	RubricSubmissionID uuid.UUID `json:"rubric_submission_id"`
	// DeclaredTotal is the teacher-declared total score; zero disables the
	// rubric total cross-check.
	DeclaredTotal float64 `json:"declared_total"`
	// DeclaredPageCount cross-checks the answer scan length; zero disables.
	DeclaredPageCount int `json:"declared_page_count"`
}

// DecisionKind classifies a review gate resolution.
type DecisionKind string

const (
	DecisionApprove DecisionKind = "approve"
	DecisionEdit    DecisionKind = "edit"
	DecisionReject  DecisionKind = "reject"
)

// Decision resolves a suspended review gate. Edits carries replacement
// state values for an edit decision; Auto marks gates the engine approved
// itself because no review was required.
type Decision struct {
	Kind  DecisionKind `json:"kind"`
	Edits state.State  `json:"edits,omitempty"`
	Note  string       `json:"note,omitempty"`
	Auto  bool         `json:"auto,omitempty"`
	At    time.Time    `json:"at"`
}

// Accumulated state keys, one per node output contract.
const (
	KeyIntake         = "intake"
	KeyAnswerPath     = "answer_path"
	KeyRubricPath     = "rubric_path"
	KeyPageCount      = "page_count"
	KeyPages          = "pages"
	KeyRubricPages    = "rubric_pages"
	KeyRubric         = "rubric"
	KeyRubricDecision = "rubric_decision"
	KeyScans          = "scans"
	KeySegments       = "segments"
	KeyTasks          = "tasks"
	KeyReport         = "report"
	KeyResultDecision = "result_decision"
	KeyExport         = "export"
)
