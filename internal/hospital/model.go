package hospital

import (
	"time"

	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Capacity holds the resource counters a hospital reports.
type Capacity struct {
	FreeERs     int `json:"free_ers"`
	ICUBeds     int `json:"icu_beds"`
	Physicians  int `json:"physicians"`
	Specialists int `json:"specialists"`
}

// Validate rejects negative counters
func (c Capacity) Validate() error {
	if c.FreeERs < 0 || c.ICUBeds < 0 || c.Physicians < 0 || c.Specialists < 0 {
		return errors.InvalidInput("capacity counters must not be negative")
	}
	return nil
}

// Readiness weights. Free ER capacity dominates, then ICU beds, then staff.
const (
	weightFreeERs     = 0.4
	weightICUBeds     = 0.3
	weightPhysicians  = 0.2
	weightSpecialists = 0.1
)

// ReadinessScore derives the weighted readiness score from raw counters.
func ReadinessScore(c Capacity) float64 {
	return weightFreeERs*float64(c.FreeERs) +
		weightICUBeds*float64(c.ICUBeds) +
		weightPhysicians*float64(c.Physicians) +
		weightSpecialists*float64(c.Specialists)
}

// Hospital represents a receiving facility in the dispatch network
type Hospital struct {
	ID             types.ID `json:"id"`
	OrganizationID types.ID `json:"organization_id"`
	Name           string   `json:"name"`

	// Lat/Lng are nil until the facility registers a location. A hospital
	// without a location cannot receive dispatches.
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	Capacity       Capacity `json:"capacity"`
	ReadinessScore float64  `json:"readiness_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location returns the hospital's coordinates, if registered.
func (h *Hospital) Location() (types.Point, bool) {
	if h.Lat == nil || h.Lng == nil {
		return types.Point{}, false
	}
	return types.Point{Lat: *h.Lat, Lng: *h.Lng}, true
}

// ApplyCapacity replaces the counters and recomputes the readiness score.
func (h *Hospital) ApplyCapacity(c Capacity) error {
	if err := c.Validate(); err != nil {
		return err
	}
	h.Capacity = c
	h.ReadinessScore = ReadinessScore(c)
	return nil
}

// CreateHospitalRequest is the request to register a hospital
type CreateHospitalRequest struct {
	OrganizationID types.ID `json:"organization_id"`
	Name           string   `json:"name"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
	Capacity       Capacity `json:"capacity"`
}

// UpdateCapacityRequest is the request to replace a hospital's counters
type UpdateCapacityRequest struct {
	FreeERs     int `json:"free_ers"`
	ICUBeds     int `json:"icu_beds"`
	Physicians  int `json:"physicians"`
	Specialists int `json:"specialists"`
}
