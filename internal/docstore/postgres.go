package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/roster/pkg/repository"
)

type postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Store backed by the documents table. Each Commit runs in a
// single transaction.
func New(db *sql.DB, logger *slog.Logger) Store {
	return &postgres{
		db:     db,
		logger: logger.With("system", "docstore"),
	}
}

const (
	scanQuery = `
		SELECT id, fields FROM documents
		WHERE collection = $1
		ORDER BY id`

	getQuery = `
		SELECT id, fields FROM documents
		WHERE collection = $1 AND id = $2`

	setQuery = `
		INSERT INTO documents(collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET
			fields = EXCLUDED.fields,
			updated_at = NOW()`

	mergeQuery = `
		INSERT INTO documents(collection, id, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET
			fields = documents.fields || EXCLUDED.fields,
			updated_at = NOW()`

	arrayRemoveQuery = `
		UPDATE documents SET
			fields = jsonb_set(
				fields,
				ARRAY[$3::text],
				COALESCE(
					(SELECT jsonb_agg(e) FROM jsonb_array_elements(fields->($3::text)) e
					 WHERE e <> ALL (SELECT jsonb_array_elements($4::jsonb))),
					'[]'::jsonb
				)
			),
			updated_at = NOW()
		WHERE collection = $1 AND id = $2
		  AND jsonb_typeof(fields->($3::text)) = 'array'`

	deleteQuery = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

func (p *postgres) Scan(ctx context.Context, collection string) ([]Document, error) {
	docs, err := repository.QueryMany(ctx, p.db, scanQuery, []any{collection}, scanDocument(collection))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return docs, nil
}

func (p *postgres) Get(ctx context.Context, ref Ref) (*Document, error) {
	d, err := repository.QueryOne(ctx, p.db, getQuery, []any{ref.Collection, ref.ID}, scanDocument(ref.Collection))
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, err)
	}
	return &d, nil
}

func (p *postgres) Commit(ctx context.Context, writes []Write) error {
	_, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		for i, w := range writes {
			if err := applyWrite(ctx, tx, w); err != nil {
				return struct{}{}, fmt.Errorf("write %d (%s %s): %w", i, w.Op, w.Ref, err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	p.logger.Debug("batch committed", "writes", len(writes))
	return nil
}

func applyWrite(ctx context.Context, e repository.Executor, w Write) error {
	switch w.Op {
	case OpSet, OpMerge:
		if w.removesOnly() {
			return applyArrayRemove(ctx, e, w)
		}

		fields := w.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}

		q := setQuery
		if w.Op == OpMerge {
			q = mergeQuery
		}
		if _, err := e.ExecContext(ctx, q, w.Ref.Collection, w.Ref.ID, string(data)); err != nil {
			return err
		}

		if w.Op == OpMerge {
			return applyArrayRemove(ctx, e, w)
		}
		return nil
	case OpDelete:
		_, err := e.ExecContext(ctx, deleteQuery, w.Ref.Collection, w.Ref.ID)
		return err
	default:
		return fmt.Errorf("unknown write op %q", w.Op)
	}
}

// applyArrayRemove runs as plain UPDATEs, so a missing document or a
// non-array field is left alone.
func applyArrayRemove(ctx context.Context, e repository.Executor, w Write) error {
	for field, elems := range w.ArrayRemove {
		data, err := json.Marshal(elems)
		if err != nil {
			return fmt.Errorf("marshal array_remove %s: %w", field, err)
		}
		if _, err := e.ExecContext(ctx, arrayRemoveQuery, w.Ref.Collection, w.Ref.ID, field, string(data)); err != nil {
			return err
		}
	}
	return nil
}

func scanDocument(collection string) repository.ScanFunc[Document] {
	return func(s repository.Scanner) (Document, error) {
		var (
			d   Document
			raw []byte
		)
		if err := s.Scan(&d.ID, &raw); err != nil {
			return d, err
		}

		fields, err := decodeFields(raw)
		if err != nil {
			return d, fmt.Errorf("decode %s/%s: %w", collection, d.ID, err)
		}

		d.Collection = collection
		d.Fields = fields
		return d, nil
	}
}
