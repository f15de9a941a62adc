// Package runs implements reconciliation runs: a persisted state machine
// around the reconcile pipeline that records each preview, executes it only
// on explicit confirmation, and streams batch progress to the run record.
package runs

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/execute"
	"github.com/JaimeStill/roster/internal/reconcile"
)

// Status is a run state.
type Status string

const (
	StatusUpload      Status = "upload"
	StatusSheetSelect Status = "sheet_select"
	StatusPreview     Status = "preview"
	StatusMigrating   Status = "migrating"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

var transitions = map[Status][]Status{
	StatusUpload:      {StatusSheetSelect, StatusFailed},
	StatusSheetSelect: {StatusPreview, StatusFailed},
	StatusPreview:     {StatusMigrating, StatusFailed},
	StatusMigrating:   {StatusDone, StatusFailed},
}

// CanTransition reports whether s may move to next. Transitions are one-way;
// done and failed are terminal.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Run is a stored reconciliation run.
type Run struct {
	ID         uuid.UUID          `json:"id"`
	Job        reconcile.Job      `json:"job"`
	Status     Status             `json:"status"`
	SourceID   *uuid.UUID         `json:"source_id,omitempty"`
	Layout     *string            `json:"layout,omitempty"`
	Preview    *reconcile.Preview `json:"preview,omitempty"`
	Progress   *execute.Progress  `json:"progress,omitempty"`
	Result     *execute.Result    `json:"result,omitempty"`
	Error      *string            `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

// CreateCommand starts a scan job (cleanup, promote, relink).
type CreateCommand struct {
	Job string `json:"job"`
}

// ImportCommand starts an import job from an uploaded source read through a
// named column layout.
type ImportCommand struct {
	SourceID uuid.UUID `json:"source_id"`
	Layout   string    `json:"layout"`
}

// ExecuteCommand confirms execution of a previewed run.
type ExecuteCommand struct {
	Confirm bool `json:"confirm"`
}
