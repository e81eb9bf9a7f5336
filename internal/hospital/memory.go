package hospital

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// MemoryRepository is an in-memory hospital store for tests and local runs
type MemoryRepository struct {
	mu        sync.RWMutex
	hospitals map[types.ID]*Hospital
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{hospitals: make(map[types.ID]*Hospital)}
}

func (r *MemoryRepository) Create(ctx context.Context, h *Hospital) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.hospitals {
		if existing.OrganizationID == h.OrganizationID {
			return errors.InvalidInput("hospital already registered for this organization")
		}
	}

	now := time.Now().UTC()
	clone := *h
	clone.CreatedAt = now
	clone.UpdatedAt = now
	r.hospitals[h.ID] = &clone
	*h = clone
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hospitals[id]
	if !ok {
		return nil, errors.NotFound("hospital", id.String())
	}
	clone := *h
	return &clone, nil
}

func (r *MemoryRepository) GetByOrganization(ctx context.Context, orgID types.ID) (*Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.hospitals {
		if h.OrganizationID == orgID {
			clone := *h
			return &clone, nil
		}
	}
	return nil, errors.NotFound("hospital", orgID.String())
}

func (r *MemoryRepository) List(ctx context.Context) ([]*Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hospitals := make([]*Hospital, 0, len(r.hospitals))
	for _, h := range r.hospitals {
		clone := *h
		hospitals = append(hospitals, &clone)
	}
	sort.Slice(hospitals, func(i, j int) bool { return hospitals[i].Name < hospitals[j].Name })
	return hospitals, nil
}

func (r *MemoryRepository) UpdateCapacity(ctx context.Context, id types.ID, c Capacity, score float64) (*Hospital, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hospitals[id]
	if !ok {
		return nil, errors.NotFound("hospital", id.String())
	}
	h.Capacity = c
	h.ReadinessScore = score
	h.UpdatedAt = time.Now().UTC()

	clone := *h
	return &clone, nil
}
