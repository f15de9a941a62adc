package sources

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/pkg/pagination"
)

// System defines the public contract for source domain operations.
type System interface {
	Handler(limits UploadLimits) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Source], error)

	Find(ctx context.Context, id uuid.UUID) (*Source, error)
	Create(ctx context.Context, cmd CreateCommand) (*Source, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Parse downloads the source blob and reads it through the layout.
	Parse(ctx context.Context, id uuid.UUID, layout Layout) (*Source, *Parsed, error)
}
