package ranking

import (
	"context"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// DefaultLimit is the candidate count used when the caller does not ask
// for a specific k.
const DefaultLimit = 3

// AmbulanceCandidate is an idle unit ranked by proximity to an incident
type AmbulanceCandidate struct {
	Ambulance  *ambulance.Ambulance `json:"ambulance"`
	DistanceKm float64              `json:"distance_km"`
}

// HospitalCandidate is a facility ranked by readiness and proximity.
// Score blends the two: readiness_score / (1 + distance_km), so a closer
// hospital wins between equals and a readier hospital wins at equal
// distance.
type HospitalCandidate struct {
	Hospital   *hospital.Hospital `json:"hospital"`
	DistanceKm float64            `json:"distance_km"`
	Score      float64            `json:"score"`
}

// HospitalScore blends readiness and distance into one ranking score.
func HospitalScore(readiness, distanceKm float64) float64 {
	return readiness / (1 + distanceKm)
}

// Ranker produces dispatch candidates around an incident location.
// Implementations never return committed units, never more than k
// candidates, and always sort best first.
type Ranker interface {
	RankAmbulances(ctx context.Context, origin types.Point, k int) ([]AmbulanceCandidate, error)
	RankHospitals(ctx context.Context, origin types.Point, k int) ([]HospitalCandidate, error)
}

func validate(origin types.Point, k int) error {
	if err := origin.Validate(); err != nil {
		return errors.InvalidInput(err.Error())
	}
	if k <= 0 {
		return errors.InvalidInput("candidate limit must be positive")
	}
	return nil
}
