package emergency

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// MemoryRepository is an in-memory emergency store for tests and local
// runs. It shares the ambulance store so CreateWithAssignment can make
// the same all-or-nothing commitment the SQL store makes in a transaction.
type MemoryRepository struct {
	mu          sync.RWMutex
	emergencies map[types.ID]*Emergency
	seq         uint64
	order       map[types.ID]uint64

	ambulances *ambulance.MemoryRepository
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository(ambulances *ambulance.MemoryRepository) *MemoryRepository {
	return &MemoryRepository{
		emergencies: make(map[types.ID]*Emergency),
		order:       make(map[types.ID]uint64),
		ambulances:  ambulances,
	}
}

func (r *MemoryRepository) CreateWithAssignment(ctx context.Context, e *Emergency) error {
	if !r.ambulances.TryCommit(e.AmbulanceID) {
		return errors.AmbulanceUnavailable(e.AmbulanceID.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	clone := *e
	clone.CreatedAt = now
	clone.UpdatedAt = now
	r.emergencies[e.ID] = &clone
	r.seq++
	r.order[e.ID] = r.seq
	*e = clone
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.emergencies[id]
	if !ok {
		return nil, errors.NotFound("emergency", id.String())
	}
	clone := *e
	return &clone, nil
}

func (r *MemoryRepository) ListByHospital(ctx context.Context, hospitalID types.ID) ([]*Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var emergencies []*Emergency
	for _, e := range r.emergencies {
		if e.HospitalID == hospitalID {
			clone := *e
			emergencies = append(emergencies, &clone)
		}
	}
	sort.Slice(emergencies, func(i, j int) bool {
		return r.order[emergencies[i].ID] < r.order[emergencies[j].ID]
	})
	return emergencies, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (*Emergency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.emergencies[id]
	if !ok {
		return nil, errors.NotFound("emergency", id.String())
	}
	if e.Status != from {
		return nil, errors.IllegalTransition(string(e.Status), string(to))
	}
	e.Status = to
	e.UpdatedAt = time.Now().UTC()

	clone := *e
	return &clone, nil
}
