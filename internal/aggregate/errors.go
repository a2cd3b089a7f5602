package aggregate

import "errors"

// ErrNoTasks indicates aggregation was invoked with no terminal tasks.
var ErrNoTasks = errors.New("no grading tasks to aggregate")
