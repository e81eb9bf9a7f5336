package emergency

import (
	"context"

	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Repository provides storage operations for emergencies
type Repository interface {
	// CreateWithAssignment atomically commits the assigned ambulance and
	// records the emergency. When the ambulance is no longer idle it
	// fails with ErrAmbulanceUnavailable and writes nothing.
	CreateWithAssignment(ctx context.Context, e *Emergency) error

	Get(ctx context.Context, id types.ID) (*Emergency, error)

	// ListByHospital returns a hospital's emergencies in creation order.
	ListByHospital(ctx context.Context, hospitalID types.ID) ([]*Emergency, error)

	// UpdateStatus moves the emergency from one status to another. The
	// write is conditional on the current status still being from, so a
	// concurrent transition cannot be overwritten.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status) (*Emergency, error)
}
