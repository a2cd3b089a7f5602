package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a progress event.
type EventKind string

const (
	EventNodeStarted    EventKind = "node_started"
	EventNodeCompleted  EventKind = "node_completed"
	EventTaskUpdate     EventKind = "task_update"
	EventReviewRequired EventKind = "review_required"
	EventCompleted      EventKind = "completed"
	EventFailed         EventKind = "failed"
	EventCancelled      EventKind = "cancelled"
)

// Event is one entry in a run's ordered progress stream. Seq is strictly
// increasing per run and survives process restarts via the checkpoint.
// Events are ephemeral; late joiners reconstruct history from the run
// snapshot, not from replayed events.
type Event struct {
	RunID   uuid.UUID       `json:"run_id"`
	Seq     uint64          `json:"seq"`
	Kind    EventKind       `json:"kind"`
	Node    string          `json:"node,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}
