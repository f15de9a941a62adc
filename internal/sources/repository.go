package sources

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/pkg/formatting"
	"github.com/JaimeStill/roster/pkg/pagination"
	"github.com/JaimeStill/roster/pkg/query"
	"github.com/JaimeStill/roster/pkg/repository"
	"github.com/JaimeStill/roster/pkg/storage"
)

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a source repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "sources"),
		pagination: pagination,
	}
}

func (r *repo) Handler(limits UploadLimits) *Handler {
	return NewHandler(r, r.logger, r.pagination, limits)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Source], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Filename")

	filters.Apply(qb)

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanSource)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Source, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanSource)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Source, error) {
	if !cmd.Kind.Valid() {
		return nil, ErrInvalidKind
	}

	rows, enc, err := measure(cmd.Data, cmd.MaxRows)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	key := buildStorageKey(id, sanitizeFilename(cmd.Filename))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload source blob: %w", err)
	}

	q := `
		INSERT INTO sources(id, kind, filename, content_type, size_bytes, storage_key, encoding, row_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, kind, filename, content_type, size_bytes, storage_key, encoding, row_count, uploaded_at`

	insertArgs := []any{
		id,
		cmd.Kind,
		cmd.Filename,
		cmd.ContentType,
		int64(len(cmd.Data)),
		key,
		enc,
		rows,
	}

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Source, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanSource)
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("source created", "id", s.ID, "filename", s.Filename, "size", formatting.FormatBytes(s.SizeBytes, 1), "rows", s.RowCount, "encoding", s.Encoding)
	return &s, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	src, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	if err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM sources WHERE id = $1", id); err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	if delErr := r.storage.Delete(ctx, src.StorageKey); delErr != nil {
		r.logger.Warn(
			"blob delete failed after DB delete",
			"key", src.StorageKey,
			"error", delErr,
		)
	}

	r.logger.Info("source deleted", "id", id)
	return nil
}

func (r *repo) Parse(ctx context.Context, id uuid.UUID, layout Layout) (*Source, *Parsed, error) {
	src, err := r.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	blob, err := r.storage.Download(ctx, src.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("download source %s: %w", id, err)
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read source %s: %w", id, err)
	}

	parsed, err := Parse(data, layout)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Info("source parsed",
		"id", id,
		"layout", layout.Name,
		"rows", len(parsed.Rows),
		"row_errors", len(parsed.Errors),
	)
	return src, parsed, nil
}

func buildStorageKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("sources/%s/%s", id, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" || name == "/" {
		name = "source.csv"
	}
	return url.PathEscape(name)
}

// measure counts data rows below a single header row and enforces maxRows.
func measure(data []byte, maxRows int) (int, string, error) {
	rows, enc, err := Count(data, 1)
	if err != nil {
		return 0, "", err
	}
	if rows == 0 {
		return 0, "", ErrEmptySheet
	}
	if maxRows > 0 && rows > maxRows {
		return 0, "", fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, rows, maxRows)
	}
	return rows, enc, nil
}
