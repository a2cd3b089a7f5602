package submissions

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pencilops/gradeflow/pkg/pagination"
	"github.com/pencilops/gradeflow/pkg/query"
	"github.com/pencilops/gradeflow/pkg/repository"
	"github.com/pencilops/gradeflow/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a submission repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "submissions"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Submission], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	subs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSubmission)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}

	result := pagination.NewPageResult(subs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Submission, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanSubmission)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Submission, error) {
	if !cmd.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidFile, cmd.Kind)
	}

	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload submission blob: %w", err)
	}

	q := `
		INSERT INTO submissions(id, kind, filename, content_type, size_bytes, page_count, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, kind, filename, content_type, size_bytes, page_count, storage_key, uploaded_at, updated_at`

	insertArgs := []any{
		id,
		cmd.Kind,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
	}

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Submission, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanSubmission)
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("submission created", "id", s.ID, "kind", s.Kind, "filename", s.Filename)
	return &s, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	sub, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM submissions WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if delErr := r.storage.Delete(ctx, sub.StorageKey); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", sub.StorageKey,
			"error", delErr,
		)
	}

	r.logger.Info("submission deleted", "id", id)
	return nil
}

// Fetch downloads the submission document into dir. The returned page count
// is the value extracted at upload time; zero when none was recorded.
func (r *repo) Fetch(ctx context.Context, id uuid.UUID, dir string) (string, int, error) {
	sub, err := r.Find(ctx, id)
	if err != nil {
		return "", 0, err
	}

	reader, err := r.storage.Download(ctx, sub.StorageKey)
	if err != nil {
		return "", 0, fmt.Errorf("download submission %s: %w", id, err)
	}
	defer reader.Close()

	path := filepath.Join(dir, fmt.Sprintf("%s-%s", sub.Kind, sanitizeFilename(sub.Filename)))

	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create local file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", 0, fmt.Errorf("write local file: %w", err)
	}

	pages := 0
	if sub.PageCount != nil {
		pages = *sub.PageCount
	}

	r.logger.Info("submission fetched", "id", id, "path", path, "pages", pages)
	return path, pages, nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("submissions/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" {
		name = "submission"
	}
	return url.PathEscape(name)
}
