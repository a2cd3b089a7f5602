package checkpoint

import "errors"

// ErrNotFound indicates no snapshot exists for the requested run.
var ErrNotFound = errors.New("checkpoint not found")
