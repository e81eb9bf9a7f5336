package ambulance

import (
	"context"

	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Repository provides storage operations for ambulances
type Repository interface {
	Create(ctx context.Context, a *Ambulance) error
	Get(ctx context.Context, id types.ID) (*Ambulance, error)
	ListByOperator(ctx context.Context, operatorID types.ID) ([]*Ambulance, error)
	UpdatePosition(ctx context.Context, id types.ID, p types.Point) (*Ambulance, error)
}
