package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/execute"
	"github.com/JaimeStill/roster/internal/mappings"
	"github.com/JaimeStill/roster/internal/reconcile"
	"github.com/JaimeStill/roster/internal/sources"
	"github.com/JaimeStill/roster/pkg/database"
	"github.com/JaimeStill/roster/pkg/lifecycle"
	"github.com/JaimeStill/roster/pkg/pagination"
	"github.com/JaimeStill/roster/pkg/query"
	"github.com/JaimeStill/roster/pkg/repository"
)

var lockKey = database.LockKey("roster-runs")

type repo struct {
	db         *sql.DB
	pipeline   *reconcile.Pipeline
	sources    sources.System
	mappings   mappings.System
	layouts    sources.Layouts
	lc         *lifecycle.Coordinator
	metrics    *Metrics
	logger     *slog.Logger
	pagination pagination.Config

	executing sync.Mutex
	mu        sync.Mutex
	cancels   map[uuid.UUID]context.CancelFunc
}

// New creates a run repository implementing the System interface. Executions
// run under the coordinator's context and are drained on shutdown.
func New(
	db *sql.DB,
	pipeline *reconcile.Pipeline,
	srcs sources.System,
	maps mappings.System,
	layouts sources.Layouts,
	lc *lifecycle.Coordinator,
	metrics *Metrics,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	r := &repo{
		db:         db,
		pipeline:   pipeline,
		sources:    srcs,
		mappings:   maps,
		layouts:    layouts,
		lc:         lc,
		metrics:    metrics,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
		cancels:    make(map[uuid.UUID]context.CancelFunc),
	}

	return r
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Run], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Job", "Status", "Error")

	filters.Apply(qb)

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanRun)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &run, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Run, error) {
	job, err := reconcile.ParseJob(cmd.Job)
	if err != nil {
		return nil, err
	}
	if job.Import() {
		return nil, fmt.Errorf("%w: %s", ErrImportJob, job)
	}

	req, err := r.request(ctx, job)
	if err != nil {
		return nil, err
	}

	pv, err := r.pipeline.Preview(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", job, err)
	}

	data, err := json.Marshal(pv)
	if err != nil {
		return nil, fmt.Errorf("marshal preview: %w", err)
	}

	q := `
		INSERT INTO runs(job, status, preview)
		VALUES ($1, $2, $3)
		` + returning

	run, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Run, error) {
		return repository.QueryOne(ctx, tx, q, []any{job, StatusPreview, data}, scanRun)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("run previewed", "run_id", run.ID, "job", job, "items", len(pv.Plan.Items))
	return &run, nil
}

func (r *repo) Import(ctx context.Context, cmd ImportCommand) (*Run, error) {
	src, err := r.sources.Find(ctx, cmd.SourceID)
	if err != nil {
		return nil, err
	}

	layout, err := r.layouts.Lookup(cmd.Layout, src.Kind)
	if err != nil {
		return nil, err
	}

	job := reconcile.Job(src.Kind)

	q := `
		INSERT INTO runs(job, status, source_id)
		VALUES ($1, $2, $3)
		` + returning

	run, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Run, error) {
		return repository.QueryOne(ctx, tx, q, []any{job, StatusUpload, src.ID}, scanRun)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	logger := r.logger.With("run_id", run.ID, "job", job)

	if err := r.advance(ctx, run.ID, StatusUpload, StatusSheetSelect, "layout = $4", layout.Name); err != nil {
		return nil, err
	}

	pv, err := r.importPreview(ctx, src, layout, job)
	if err != nil {
		logger.Warn("import preview failed", "error", err)
		return nil, errors.Join(err, r.fail(ctx, run.ID, StatusSheetSelect, err.Error()))
	}

	data, err := json.Marshal(pv)
	if err != nil {
		err = fmt.Errorf("marshal preview: %w", err)
		return nil, errors.Join(err, r.fail(ctx, run.ID, StatusSheetSelect, err.Error()))
	}

	if err := r.advance(ctx, run.ID, StatusSheetSelect, StatusPreview, "preview = $4", data); err != nil {
		return nil, err
	}

	logger.Info("run previewed", "source_id", src.ID, "layout", layout.Name, "items", len(pv.Plan.Items))
	return r.Find(ctx, run.ID)
}

func (r *repo) importPreview(ctx context.Context, src *sources.Source, layout sources.Layout, job reconcile.Job) (*reconcile.Preview, error) {
	_, parsed, err := r.sources.Parse(ctx, src.ID, layout)
	if err != nil {
		return nil, err
	}

	req, err := r.request(ctx, job)
	if err != nil {
		return nil, err
	}
	req.SourceID = src.ID.String()
	req.Rows = parsed

	return r.pipeline.Preview(ctx, req)
}

func (r *repo) request(ctx context.Context, job reconcile.Job) (reconcile.Request, error) {
	classes, err := r.mappings.Overrides(ctx, mappings.KindClass)
	if err != nil {
		return reconcile.Request{}, err
	}
	students, err := r.mappings.Overrides(ctx, mappings.KindStudent)
	if err != nil {
		return reconcile.Request{}, err
	}
	return reconcile.Request{
		Job:              job,
		ClassOverrides:   classes,
		StudentOverrides: students,
	}, nil
}

func (r *repo) Execute(ctx context.Context, id uuid.UUID) (*Run, error) {
	if !r.executing.TryLock() {
		return nil, ErrRunInProgress
	}

	lock, err := database.TryLock(ctx, r.db, lockKey)
	if err != nil {
		r.executing.Unlock()
		if errors.Is(err, database.ErrLockHeld) {
			return nil, ErrRunInProgress
		}
		return nil, err
	}

	release := func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error("release run lock", "error", err)
		}
		r.executing.Unlock()
	}

	run, err := r.Find(ctx, id)
	if err != nil {
		release()
		return nil, err
	}
	if run.Status != StatusPreview || run.Preview == nil {
		release()
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, run.Status)
	}

	if err := r.advance(ctx, id, StatusPreview, StatusMigrating, "started_at = NOW()"); err != nil {
		release()
		return nil, err
	}

	if err := r.launch(id, func(execCtx context.Context) { r.apply(execCtx, run) }, release); err != nil {
		if ferr := r.fail(ctx, id, StatusMigrating, "not started: "+err.Error()); ferr != nil {
			r.logger.Error("fail unstarted run", "run_id", id, "error", ferr)
		}
		return nil, err
	}

	return r.Find(ctx, id)
}

// launch runs work as tracked lifecycle work and records its cancel func.
// release always runs exactly once, including when the coordinator refuses
// the work.
func (r *repo) launch(id uuid.UUID, work func(ctx context.Context), release func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, err := r.lc.Go(func(ctx context.Context) {
		defer release()
		defer r.forget(id)
		work(ctx)
	})
	if err != nil {
		release()
		return err
	}
	r.cancels[id] = cancel
	return nil
}

func (r *repo) apply(ctx context.Context, run *Run) {
	logger := r.logger.With("run_id", run.ID, "job", run.Job)
	persist := context.WithoutCancel(ctx)

	logger.Info("run executing", "items", len(run.Preview.Plan.Items))
	start := time.Now()
	r.metrics.started()

	result := r.pipeline.Execute(ctx, run.Preview.Plan, func(p execute.Progress) {
		if err := r.saveProgress(persist, run.ID, p); err != nil {
			logger.Error("persist progress", "chunk", p.Chunk, "error", err)
		}
	})

	status, msg := StatusDone, (*string)(nil)
	if result.Canceled {
		status = StatusFailed
		s := fmt.Sprintf("canceled after %d of %d items", result.Processed, result.Total)
		msg = &s
	}
	r.metrics.finished(run.Job, status, result, time.Since(start))

	data, err := json.Marshal(result)
	if err != nil {
		logger.Error("marshal result", "error", err)
		return
	}

	if err := r.advance(persist, run.ID, StatusMigrating, status,
		"result = $4, error = $5, finished_at = NOW()", data, msg); err != nil {
		logger.Error("finish run", "error", err)
		return
	}

	logger.Info(
		"run finished",
		"status", status,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
	)
}

func (r *repo) saveProgress(ctx context.Context, id uuid.UUID, p execute.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return repository.ExecExpectOne(ctx, r.db,
		"UPDATE runs SET progress = $2, updated_at = NOW() WHERE id = $1", id, data)
}

func (r *repo) Cancel(ctx context.Context, id uuid.UUID) (*Run, error) {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()

	if ok {
		cancel()
		r.logger.Info("run cancel requested", "run_id", id)
		return r.Find(ctx, id)
	}

	run, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status == StatusMigrating || run.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidState, run.Status)
	}

	if err := r.fail(ctx, id, run.Status, "canceled by operator"); err != nil {
		return nil, err
	}

	r.logger.Info("run abandoned", "run_id", id, "status", run.Status)
	return r.Find(ctx, id)
}

func (r *repo) forget(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
}

// advance moves a run from one status to the next, applying extra
// assignments in the same statement. Extra arguments bind from $4.
func (r *repo) advance(ctx context.Context, id uuid.UUID, from, to Status, assign string, args ...any) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}

	set := "status = $3, updated_at = NOW()"
	if assign != "" {
		set += ", " + assign
	}

	q := fmt.Sprintf("UPDATE runs SET %s WHERE id = $1 AND status = $2", set)
	if err := repository.ExecExpectOne(ctx, r.db, q, append([]any{id, from, to}, args...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: expected %s", ErrInvalidState, from)
		}
		return err
	}
	return nil
}

// fail marks the run failed with msg.
func (r *repo) fail(ctx context.Context, id uuid.UUID, from Status, msg string) error {
	return r.advance(context.WithoutCancel(ctx), id, from, StatusFailed,
		"error = $4, finished_at = NOW()", msg)
}
