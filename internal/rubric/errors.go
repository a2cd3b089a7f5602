package rubric

import "errors"

// Sentinel errors for rubric parsing.
var (
	// ErrScoreMismatch indicates the parsed total diverges from the
	// teacher-declared total. This is a hard stop requiring re-upload,
	// never a warning.
	ErrScoreMismatch = errors.New("rubric score mismatch")
	ErrNoPages       = errors.New("no rubric pages provided")
	ErrNoItems       = errors.New("no scoring points extracted")
)
