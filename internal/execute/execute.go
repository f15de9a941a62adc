// Package execute applies a plan to a document store in bounded atomic
// batches. A failed batch marks its items failed and the run moves on to the
// next batch; already-committed batches are never rolled back.
package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/plan"
)

// DefaultBatchSize leaves headroom under common 500-write batch caps.
const DefaultBatchSize = 400

// ErrGroupAborted marks the remainder of a split group after one of its
// batches failed.
var ErrGroupAborted = errors.New("earlier batch of the same group failed")

// Progress is reported after every batch commit attempt.
type Progress struct {
	Chunk     int `json:"chunk"`
	Chunks    int `json:"chunks"`
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Failure describes one failed batch.
type Failure struct {
	Chunk int      `json:"chunk"`
	Error string   `json:"error"`
	Items []string `json:"items"`
}

// Result is the final tally of a run. Processed is Succeeded + Failed;
// Skipped counts items never attempted because the run was canceled.
type Result struct {
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Chunks    int       `json:"chunks"`
	Canceled  bool      `json:"canceled"`
	Errors    []Failure `json:"errors"`
	Trace     []string  `json:"trace"`
}

// Options configures an Executor.
type Options struct {
	BatchSize int
	// Progress, when set, is called synchronously after every batch.
	Progress func(Progress)
}

// Executor runs plans against a store.
type Executor struct {
	store  docstore.Store
	logger *slog.Logger
	opts   Options
}

// New creates an Executor. A non-positive batch size uses DefaultBatchSize.
func New(store docstore.Store, logger *slog.Logger, opts Options) *Executor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Executor{
		store:  store,
		logger: logger.With("system", "executor"),
		opts:   opts,
	}
}

type status int

const (
	pending status = iota
	succeeded
	failed
)

// Run executes p. It never returns early on a batch failure; it stops
// between batches when ctx is canceled and counts the rest as skipped.
func (e *Executor) Run(ctx context.Context, p plan.Plan) Result {
	chunks := pack(p.Grouped(), e.opts.BatchSize)

	r := Result{
		Total:  len(p.Items),
		Chunks: len(chunks),
		Errors: make([]Failure, 0),
		Trace:  make([]string, 0, len(chunks)+1),
	}
	states := make(map[int]status, len(p.Items))
	aborted := make(map[string]bool)

	for n, c := range chunks {
		label := fmt.Sprintf("chunk %d/%d", n+1, len(chunks))

		if err := ctx.Err(); err != nil {
			r.Canceled = true
			r.trace("%s: canceled before commit: %v", label, err)
			e.logger.Warn("run canceled", "chunk", n+1, "chunks", len(chunks))
			break
		}

		if c.split {
			e.logger.Warn("group exceeds batch size, splitting", "group", c.group, "chunk", n+1)
		}

		var err error
		if c.split && aborted[c.group] {
			err = ErrGroupAborted
		} else {
			err = e.store.Commit(ctx, c.writes())
		}

		if err != nil {
			if c.split {
				aborted[c.group] = true
			}
			for _, u := range c.units {
				states[u.seq] = failed
			}
			r.Errors = append(r.Errors, Failure{Chunk: n + 1, Error: err.Error(), Items: c.describe()})
			r.trace("%s: FAILED %d writes: %v", label, c.size, err)
			e.logger.Error("batch failed", "chunk", n+1, "writes", c.size, "error", err)
		} else {
			for _, u := range c.units {
				if u.primary && states[u.seq] == pending {
					states[u.seq] = succeeded
				}
			}
			r.trace("%s: committed %d writes", label, c.size)
			e.logger.Info("batch committed", "chunk", n+1, "writes", c.size)
		}

		r.tally(states)
		if e.opts.Progress != nil {
			e.opts.Progress(Progress{
				Chunk:     n + 1,
				Chunks:    len(chunks),
				Processed: r.Processed,
				Total:     r.Total,
				Succeeded: r.Succeeded,
				Failed:    r.Failed,
			})
		}
	}

	r.tally(states)
	r.Skipped = r.Total - r.Processed
	r.trace("done: %d processed, %d succeeded, %d failed, %d skipped",
		r.Processed, r.Succeeded, r.Failed, r.Skipped)
	return r
}

func (r *Result) tally(states map[int]status) {
	r.Succeeded, r.Failed = 0, 0
	for _, s := range states {
		switch s {
		case succeeded:
			r.Succeeded++
		case failed:
			r.Failed++
		}
	}
	r.Processed = r.Succeeded + r.Failed
}

func (r *Result) trace(format string, args ...any) {
	r.Trace = append(r.Trace, fmt.Sprintf(format, args...))
}
