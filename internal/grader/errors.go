package grader

import "errors"

// Sentinel errors for grading capability calls.
var (
	ErrVisionCall    = errors.New("vision call failed")
	ErrEmptyResponse = errors.New("model returned no usable content")
)
