package ambulance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// MemoryRepository is an in-memory ambulance store for tests and local runs
type MemoryRepository struct {
	mu         sync.RWMutex
	ambulances map[types.ID]*Ambulance
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{ambulances: make(map[types.ID]*Ambulance)}
}

func (r *MemoryRepository) Create(ctx context.Context, a *Ambulance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	clone := *a
	clone.CreatedAt = now
	clone.UpdatedAt = now
	r.ambulances[a.ID] = &clone
	*a = clone
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Ambulance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.ambulances[id]
	if !ok {
		return nil, errors.NotFound("ambulance", id.String())
	}
	clone := *a
	return &clone, nil
}

func (r *MemoryRepository) ListByOperator(ctx context.Context, operatorID types.ID) ([]*Ambulance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ambulances []*Ambulance
	for _, a := range r.ambulances {
		if a.OperatorID == operatorID {
			clone := *a
			ambulances = append(ambulances, &clone)
		}
	}
	sort.Slice(ambulances, func(i, j int) bool { return ambulances[i].Callsign < ambulances[j].Callsign })
	return ambulances, nil
}

func (r *MemoryRepository) UpdatePosition(ctx context.Context, id types.ID, p types.Point) (*Ambulance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.ambulances[id]
	if !ok {
		return nil, errors.NotFound("ambulance", id.String())
	}
	lat, lng := p.Lat, p.Lng
	a.Lat, a.Lng = &lat, &lng
	a.UpdatedAt = time.Now().UTC()

	clone := *a
	return &clone, nil
}

// TryCommit flips an idle unit to on_call. It returns false when the unit
// is missing or already committed, mirroring the conditional UPDATE the
// SQL store performs inside the dispatch transaction.
func (r *MemoryRepository) TryCommit(id types.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.ambulances[id]
	if !ok || a.Status != StatusIdle {
		return false
	}
	a.Status = StatusOnCall
	a.UpdatedAt = time.Now().UTC()
	return true
}

// Snapshot returns a copy of every stored ambulance. The ranking memory
// store uses it to scan candidates.
func (r *MemoryRepository) Snapshot() []*Ambulance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ambulances := make([]*Ambulance, 0, len(r.ambulances))
	for _, a := range r.ambulances {
		clone := *a
		ambulances = append(ambulances, &clone)
	}
	return ambulances
}
