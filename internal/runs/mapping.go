package runs

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/pkg/query"
	"github.com/JaimeStill/roster/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "runs", "r").
	Project("id", "ID").
	Project("job", "Job").
	Project("status", "Status").
	Project("source_id", "SourceID").
	Project("layout", "Layout").
	Project("preview", "Preview").
	Project("progress", "Progress").
	Project("result", "Result").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("started_at", "StartedAt").
	Project("finished_at", "FinishedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

const returning = `RETURNING id, job, status, source_id, layout, preview, progress, result,
	error, created_at, updated_at, started_at, finished_at`

// Filters contains optional filtering criteria for run queries.
type Filters struct {
	Job      *string    `json:"job,omitempty"`
	Status   *string    `json:"status,omitempty"`
	SourceID *uuid.UUID `json:"source_id,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Job", f.Job).
		WhereEquals("Status", f.Status).
		WhereEquals("SourceID", f.SourceID).
		WhereSince("CreatedAt", f.Since)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if j := values.Get("job"); j != "" {
		f.Job = &j
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if s := values.Get("source_id"); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			f.SourceID = &id
		}
	}

	if s := values.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			f.Since = &t
		}
	}

	return f
}

func scanRun(s repository.Scanner) (Run, error) {
	var (
		r                         Run
		preview, progress, result []byte
	)

	err := s.Scan(
		&r.ID,
		&r.Job,
		&r.Status,
		&r.SourceID,
		&r.Layout,
		&preview,
		&progress,
		&result,
		&r.Error,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.StartedAt,
		&r.FinishedAt,
	)
	if err != nil {
		return r, err
	}

	if err := unmarshal(preview, &r.Preview); err != nil {
		return r, fmt.Errorf("unmarshal preview: %w", err)
	}
	if err := unmarshal(progress, &r.Progress); err != nil {
		return r, fmt.Errorf("unmarshal progress: %w", err)
	}
	if err := unmarshal(result, &r.Result); err != nil {
		return r, fmt.Errorf("unmarshal result: %w", err)
	}

	return r, nil
}

func unmarshal[T any](raw []byte, dst **T) error {
	if len(raw) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
