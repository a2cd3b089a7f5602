package state

import "errors"

// ErrKeyMissing indicates a requested key is not present in the state.
var ErrKeyMissing = errors.New("state key missing")
