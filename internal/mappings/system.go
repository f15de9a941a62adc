package mappings

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/roster/internal/matching"
	"github.com/JaimeStill/roster/pkg/pagination"
)

// System defines the public contract for mapping operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Mapping], error)

	Find(ctx context.Context, id uuid.UUID) (*Mapping, error)
	Create(ctx context.Context, cmd CreateCommand) (*Mapping, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Mapping, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Overrides returns every mapping of kind as an immutable matcher table.
	Overrides(ctx context.Context, kind Kind) (matching.Overrides, error)
}
