package ranking

import (
	"context"
	"sort"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// MemoryRanker ranks candidates from the in-memory stores
type MemoryRanker struct {
	ambulances *ambulance.MemoryRepository
	hospitals  hospital.Repository
}

// NewMemoryRanker creates a ranker over the in-memory stores
func NewMemoryRanker(ambulances *ambulance.MemoryRepository, hospitals hospital.Repository) *MemoryRanker {
	return &MemoryRanker{ambulances: ambulances, hospitals: hospitals}
}

func (r *MemoryRanker) RankAmbulances(ctx context.Context, origin types.Point, k int) ([]AmbulanceCandidate, error) {
	if err := validate(origin, k); err != nil {
		return nil, err
	}

	var candidates []AmbulanceCandidate
	for _, a := range r.ambulances.Snapshot() {
		if !a.Dispatchable() {
			continue
		}
		p, ok := a.Location()
		if !ok {
			continue
		}
		candidates = append(candidates, AmbulanceCandidate{
			Ambulance:  a,
			DistanceKm: origin.DistanceKm(p),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].Ambulance.ID < candidates[j].Ambulance.ID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (r *MemoryRanker) RankHospitals(ctx context.Context, origin types.Point, k int) ([]HospitalCandidate, error) {
	if err := validate(origin, k); err != nil {
		return nil, err
	}

	hospitals, err := r.hospitals.List(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []HospitalCandidate
	for _, h := range hospitals {
		p, ok := h.Location()
		if !ok {
			continue
		}
		distance := origin.DistanceKm(p)
		candidates = append(candidates, HospitalCandidate{
			Hospital:   h,
			DistanceKm: distance,
			Score:      HospitalScore(h.ReadinessScore, distance),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Hospital.ID < candidates[j].Hospital.ID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}
