package workflow

import "errors"

var (
	// ErrRunNotFound indicates no checkpoint exists for the run id.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidIntake indicates the submission payload failed validation;
	// the run is never created.
	ErrInvalidIntake = errors.New("invalid intake")

	// ErrInvalidDecision indicates a resume decision with an unknown kind or
	// a malformed edit payload.
	ErrInvalidDecision = errors.New("invalid review decision")

	// ErrPageCountMismatch indicates the declared page count does not match
	// the submitted document.
	ErrPageCountMismatch = errors.New("page count mismatch")

	// ErrStateUnsatisfied indicates a node's declared inputs are missing
	// from the accumulated state, which means a prior node failed to honor
	// its output contract.
	ErrStateUnsatisfied = errors.New("node inputs unsatisfied")
)
