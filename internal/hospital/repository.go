package hospital

import (
	"context"

	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Repository provides storage operations for hospitals
type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	Get(ctx context.Context, id types.ID) (*Hospital, error)
	GetByOrganization(ctx context.Context, orgID types.ID) (*Hospital, error)
	List(ctx context.Context) ([]*Hospital, error)
	// UpdateCapacity persists counters and the derived readiness score.
	UpdateCapacity(ctx context.Context, id types.ID, c Capacity, score float64) (*Hospital, error)
}
