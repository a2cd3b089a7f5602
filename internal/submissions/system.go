package submissions

import (
	"context"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/pkg/pagination"
)

// System defines the public contract for submission domain operations.
// Fetch satisfies the workflow engine's submission source dependency.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Submission], error)

	Find(ctx context.Context, id uuid.UUID) (*Submission, error)
	Create(ctx context.Context, cmd CreateCommand) (*Submission, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Fetch downloads the submission's document into dir and returns the
	// local path plus the page count recorded at upload time.
	Fetch(ctx context.Context, id uuid.UUID, dir string) (string, int, error)
}
