package runs

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/pkg/pagination"
)

// System defines the public contract for run operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Run], error)

	Find(ctx context.Context, id uuid.UUID) (*Run, error)

	// Create plans a scan job and stores the run in preview.
	Create(ctx context.Context, cmd CreateCommand) (*Run, error)

	// Import parses an uploaded source, plans its import job, and stores the
	// run in preview. A parse or planning failure leaves the run failed.
	Import(ctx context.Context, cmd ImportCommand) (*Run, error)

	// Execute moves a previewed run to migrating and applies its plan in the
	// background. Only one run executes at a time.
	Execute(ctx context.Context, id uuid.UUID) (*Run, error)

	// Cancel stops an executing run between batches, or abandons a run that
	// has not started executing.
	Cancel(ctx context.Context, id uuid.UUID) (*Run, error)
}
