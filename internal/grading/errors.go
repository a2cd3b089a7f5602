package grading

import "errors"

var (
	// ErrNoTasks indicates dispatch was invoked with an empty task list.
	ErrNoTasks = errors.New("no grading tasks to dispatch")

	// ErrAttemptsExhausted indicates a task failed every allowed attempt.
	ErrAttemptsExhausted = errors.New("grading attempts exhausted")
)
