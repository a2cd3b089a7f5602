package runs

import (
	"errors"
	"net/http"

	"github.com/pencilops/gradeflow/internal/workflow"
)

var (
	// ErrStreamingUnsupported indicates the response writer cannot flush,
	// which server-sent events require.
	ErrStreamingUnsupported = errors.New("streaming unsupported")

	// ErrNoSummary indicates the run has not produced an aggregated report yet.
	ErrNoSummary = errors.New("run has no summary yet")
)

// MapHTTPStatus maps run domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, workflow.ErrRunNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, workflow.ErrInvalidIntake) || errors.Is(err, workflow.ErrInvalidDecision) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
