package mappings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/matching"
	"github.com/JaimeStill/roster/pkg/pagination"
	"github.com/JaimeStill/roster/pkg/query"
	"github.com/JaimeStill/roster/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a mapping repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "mappings"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Mapping], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "SourceKey", "TargetID")

	filters.Apply(qb)

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanMapping)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Mapping, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	m, err := repository.QueryOne(ctx, r.db, q, args, scanMapping)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &m, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Mapping, error) {
	if err := validate(cmd.Kind, cmd.SourceKey, cmd.TargetID); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO mappings(kind, source_key, target_id, note)
		VALUES ($1, $2, $3, $4)
		` + returning

	args := []any{cmd.Kind, strings.TrimSpace(cmd.SourceKey), strings.TrimSpace(cmd.TargetID), cmd.Note}

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Mapping, error) {
		return repository.QueryOne(ctx, tx, q, args, scanMapping)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("mapping created", "id", m.ID, "kind", m.Kind, "source_key", m.SourceKey, "target_id", m.TargetID)
	return &m, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Mapping, error) {
	if strings.TrimSpace(cmd.SourceKey) == "" || strings.TrimSpace(cmd.TargetID) == "" {
		return nil, ErrInvalidMapping
	}

	q := `
		UPDATE mappings
		SET source_key = $1, target_id = $2, note = $3, updated_at = NOW()
		WHERE id = $4
		` + returning

	args := []any{strings.TrimSpace(cmd.SourceKey), strings.TrimSpace(cmd.TargetID), cmd.Note, id}

	m, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Mapping, error) {
		return repository.QueryOne(ctx, tx, q, args, scanMapping)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("mapping updated", "id", m.ID)
	return &m, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM mappings WHERE id = $1", id); err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("mapping deleted", "id", id)
	return nil
}

func (r *repo) Overrides(ctx context.Context, kind Kind) (matching.Overrides, error) {
	k := string(kind)
	q, args := query.
		NewBuilder(projection, query.SortField{Field: "UpdatedAt"}).
		WhereEquals("Kind", &k).
		Build()

	ms, err := repository.QueryMany(ctx, r.db, q, args, scanMapping)
	if err != nil {
		return nil, fmt.Errorf("load %s mappings: %w", kind, err)
	}
	return Overrides(ms), nil
}
