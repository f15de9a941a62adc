// Package reconcile runs the reconciliation stages against a document store:
// load a snapshot, normalize, match or classify, and plan. Planning never
// writes; a Preview is executed separately once an operator confirms it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/classify"
	"github.com/JaimeStill/roster/internal/docstore"
	"github.com/JaimeStill/roster/internal/execute"
	"github.com/JaimeStill/roster/internal/matching"
	"github.com/JaimeStill/roster/internal/plan"
	"github.com/JaimeStill/roster/internal/sources"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrSourceRequired = errors.New("job requires parsed source rows")
)

const (
	fieldName      = "name"
	fieldSchool    = "school"
	fieldGrade     = "grade"
	fieldStatus    = "status"
	fieldStudentID = "studentId"
	fieldClassID   = "classId"
	fieldClassName = "className"
	fieldTeacherID = "teacherId"
	fieldTeacher   = "teacherName"
)

var phoneFields = []string{"phone", "parentPhone", "studentPhone"}

// Job names a reconciliation job.
type Job string

const (
	JobCleanup       Job = "cleanup"
	JobPromote       Job = "promote"
	JobRelink        Job = "relink"
	JobConsultations Job = "consultations"
	JobEnrollments   Job = "enrollments"
)

// ParseJob validates a job name.
func ParseJob(s string) (Job, error) {
	switch j := Job(strings.TrimSpace(strings.ToLower(s))); j {
	case JobCleanup, JobPromote, JobRelink, JobConsultations, JobEnrollments:
		return j, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownJob, s)
}

// Import reports whether the job plans from spreadsheet rows rather than a
// store scan.
func (j Job) Import() bool {
	return j == JobConsultations || j == JobEnrollments
}

// Collections names the stored collections. Enrollments is both the owned
// sub-collection under each student and the legacy array field name.
type Collections struct {
	Students      string `json:"students"`
	Classes       string `json:"classes"`
	Staff         string `json:"staff"`
	Consultations string `json:"consultations"`
	Enrollments   string `json:"enrollments"`
}

// DefaultCollections is the academy document layout.
var DefaultCollections = Collections{
	Students:      "students",
	Classes:       "classes",
	Staff:         "staff",
	Consultations: "consultations",
	Enrollments:   "enrollments",
}

// DefaultProbeChunkSize bounds concurrent sub-collection reads.
const DefaultProbeChunkSize = 10

// Options is the explicit configuration of a pipeline. A run's behavior is
// fully determined by these options plus its inputs.
type Options struct {
	Collections    Collections
	ProbeChunkSize int
	BatchSize      int
	// Abbreviations maps class name letter prefixes to full names.
	Abbreviations map[string]string
	// CreatePlaceholders allows consultation imports to create a student for
	// rows that match nobody. Classes and staff are never created.
	CreatePlaceholders bool
	// NewID generates sub-record ids. Defaults to random UUIDs.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Collections == (Collections{}) {
		o.Collections = DefaultCollections
	}
	if o.ProbeChunkSize <= 0 {
		o.ProbeChunkSize = DefaultProbeChunkSize
	}
	if o.BatchSize <= 0 {
		o.BatchSize = execute.DefaultBatchSize
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

func (o Options) planOptions() plan.Options {
	return plan.Options{
		Children:       o.Collections.Enrollments,
		References:     o.Collections.Consultations,
		ReferenceField: fieldStudentID,
		AuditField:     "previousStudentId",
	}
}

// Request selects a job and carries its inputs. Overrides are read once by
// the caller at run start and stay fixed for the whole run.
type Request struct {
	Job              Job
	SourceID         string
	Rows             *sources.Parsed
	ClassOverrides   matching.Overrides
	StudentOverrides matching.Overrides
}

// Flag is a document surfaced for an operator without any planned change.
type Flag struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Skip is an input excluded from the plan. Line is set for spreadsheet rows,
// Key for stored documents.
type Skip struct {
	Line   int    `json:"line,omitempty"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

// Preview is a dry-run result: the executable plan plus everything an
// operator should review before confirming it.
type Preview struct {
	Job            Job                    `json:"job"`
	Plan           plan.Plan              `json:"plan"`
	Counts         map[plan.Operation]int `json:"counts"`
	Report         *classify.Report       `json:"report,omitempty"`
	Flagged        []Flag                 `json:"flagged,omitempty"`
	NoHistory      []classify.Candidate   `json:"no_history,omitempty"`
	Matches        []matching.Result      `json:"matches,omitempty"`
	Skipped        []Skip                 `json:"skipped,omitempty"`
	SchoolRewrites map[string]string      `json:"school_rewrites,omitempty"`
	PlannedAt      time.Time              `json:"planned_at"`
}

func (p *Preview) skip(line int, key, format string, args ...any) {
	p.Skipped = append(p.Skipped, Skip{Line: line, Key: key, Reason: fmt.Sprintf(format, args...)})
}

func (p *Preview) finish(pl plan.Plan) *Preview {
	p.Plan = pl
	p.Counts = pl.Count()
	p.PlannedAt = time.Now().UTC()
	return p
}

// Pipeline plans and executes jobs against one store.
type Pipeline struct {
	store  docstore.Store
	logger *slog.Logger
	opts   Options
}

// New creates a Pipeline.
func New(store docstore.Store, logger *slog.Logger, opts Options) *Pipeline {
	return &Pipeline{
		store:  store,
		logger: logger.With("system", "reconcile"),
		opts:   opts.withDefaults(),
	}
}

// Preview loads a fresh snapshot and plans req.Job against it.
func (p *Pipeline) Preview(ctx context.Context, req Request) (*Preview, error) {
	if req.Job.Import() && req.Rows == nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceRequired, req.Job)
	}

	snap, err := Load(ctx, p.store, p.opts)
	if err != nil {
		return nil, err
	}

	p.logger.Info(
		"snapshot loaded",
		"job", req.Job,
		"students", len(snap.Students),
		"classes", len(snap.Classes),
		"staff", len(snap.Staff),
		"consultations", len(snap.Consultations),
		"with_enrollments", len(snap.Enrollments),
	)

	pv, err := p.Plan(snap, req)
	if err != nil {
		return nil, err
	}

	p.logger.Info(
		"plan built",
		"job", req.Job,
		"items", len(pv.Plan.Items),
		"groups", pv.Plan.Groups,
		"conflicts", len(pv.Plan.Conflicts),
		"skipped", len(pv.Skipped),
	)
	return pv, nil
}

// Plan runs the pure stages of req.Job against an already-loaded snapshot.
func (p *Pipeline) Plan(snap *Snapshot, req Request) (*Preview, error) {
	switch req.Job {
	case JobCleanup:
		return cleanup(snap, p.opts), nil
	case JobPromote:
		return promote(snap, p.opts), nil
	case JobRelink:
		return relink(snap, req, p.opts), nil
	case JobConsultations:
		if req.Rows == nil {
			return nil, fmt.Errorf("%w: %s", ErrSourceRequired, req.Job)
		}
		return importConsultations(snap, req, p.opts), nil
	case JobEnrollments:
		if req.Rows == nil {
			return nil, fmt.Errorf("%w: %s", ErrSourceRequired, req.Job)
		}
		return importEnrollments(snap, req, p.opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJob, req.Job)
}

// Execute applies a previewed plan in batches. progress, when set, is called
// after every batch.
func (p *Pipeline) Execute(ctx context.Context, pl plan.Plan, progress func(execute.Progress)) execute.Result {
	exec := execute.New(p.store, p.logger, execute.Options{
		BatchSize: p.opts.BatchSize,
		Progress:  progress,
	})
	return exec.Run(ctx, pl)
}
