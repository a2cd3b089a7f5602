// Package runs persists workflow run checkpoints in Postgres and exposes
// the run HTTP surface: submission, status, review resolution, cancellation,
// live progress streaming, and the class summary.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/internal/workflow"
	"github.com/pencilops/gradeflow/pkg/checkpoint"
	"github.com/pencilops/gradeflow/pkg/pagination"
	"github.com/pencilops/gradeflow/pkg/query"
	"github.com/pencilops/gradeflow/pkg/repository"
)

// Store is the Postgres checkpoint.Store. The full run record is kept as
// jsonb; status and node columns are projected out of the snapshot so runs
// can be listed and filtered without decoding blobs.
type Store struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

var _ checkpoint.Store = (*Store)(nil)

// NewStore creates a run checkpoint store.
func NewStore(db *sql.DB, logger *slog.Logger, pagination pagination.Config) *Store {
	return &Store{
		db:         db,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

// Save upserts the latest snapshot for the run. The engine linearizes saves
// per run, so the upsert never races itself.
func (s *Store) Save(ctx context.Context, id uuid.UUID, snapshot []byte) error {
	var run workflow.Run
	if err := json.Unmarshal(snapshot, &run); err != nil {
		return fmt.Errorf("decode run snapshot: %w", err)
	}

	q := `
		INSERT INTO runs(id, status, current_node, event_seq, error, record, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node = EXCLUDED.current_node,
			event_seq = EXCLUDED.event_seq,
			error = EXCLUDED.error,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, q,
		id,
		string(run.Status),
		run.CurrentNode,
		int64(run.EventSeq),
		run.Error,
		snapshot,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", id, err)
	}
	return nil
}

// Load returns the latest snapshot for the run.
func (s *Store) Load(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM runs WHERE id = $1", id,
	).Scan(&snapshot)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, checkpoint.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return snapshot, nil
}

// Delete removes the run's snapshot. Deleting an absent run is not an error.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}

// List returns a paginated view over the projected run columns.
func (s *Store) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[View], error) {
	page.Normalize(s.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "CurrentNode")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	views, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanView)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(views, total, page.Page, page.PageSize)
	return &result, nil
}

// Active returns the ids of runs that were mid-flight at shutdown, for
// engine recovery at startup.
func (s *Store) Active(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM runs WHERE status IN ('pending', 'running')",
	)
	if err != nil {
		return nil, fmt.Errorf("query active runs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
