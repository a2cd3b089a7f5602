package segment

import "errors"

// ErrNoSignals indicates boundary detection was invoked with no pages.
var ErrNoSignals = errors.New("no page signals provided")
