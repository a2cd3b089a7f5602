// Package checkpoint defines the durable key-value store that holds the
// serialized state of a workflow run, enabling crash recovery and
// suspend/resume across process restarts. The engine owns the record
// encoding; stores persist opaque bytes keyed by run id.
package checkpoint

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the latest snapshot of each run. Implementations must be
// safe for concurrent access across runs; writes for a single run are
// linearized by the engine and never issued concurrently.
type Store interface {
	// Save durably records the snapshot for the run, replacing any prior snapshot.
	Save(ctx context.Context, id uuid.UUID, snapshot []byte) error
	// Load returns the latest snapshot for the run.
	// Returns ErrNotFound if no snapshot exists.
	Load(ctx context.Context, id uuid.UUID) ([]byte, error)
	// Delete removes the run's snapshot. Deleting an absent snapshot is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
