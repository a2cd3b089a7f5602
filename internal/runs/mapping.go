package runs

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/pkg/query"
	"github.com/pencilops/gradeflow/pkg/repository"
)

// View is the listable projection of a run, without the state blob.
type View struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	CurrentNode string    `json:"current_node"`
	EventSeq    int64     `json:"event_seq"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var projection = query.
	NewProjectionMap("public", "runs", "r").
	Project("id", "ID").
	Project("status", "Status").
	Project("current_node", "CurrentNode").
	Project("event_seq", "EventSeq").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for run queries.
type Filters struct {
	Status      *string `json:"status,omitempty"`
	CurrentNode *string `json:"current_node,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("CurrentNode", f.CurrentNode)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if n := values.Get("current_node"); n != "" {
		f.CurrentNode = &n
	}

	return f
}

func scanView(s repository.Scanner) (View, error) {
	var v View
	err := s.Scan(
		&v.ID,
		&v.Status,
		&v.CurrentNode,
		&v.EventSeq,
		&v.Error,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}
