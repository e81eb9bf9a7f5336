package ambulance

import (
	"time"

	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Status defines the availability of an ambulance
type Status string

const (
	// StatusIdle means the unit can be dispatched.
	StatusIdle Status = "idle"
	// StatusOnCall means the unit is committed to an emergency. The
	// commitment is permanent: completed calls retire the unit from the
	// dispatchable pool.
	StatusOnCall Status = "on_call"
)

// Ambulance represents a dispatchable unit
type Ambulance struct {
	ID         types.ID `json:"id"`
	OperatorID types.ID `json:"operator_id"`
	Callsign   string   `json:"callsign"`
	Status     Status   `json:"status"`

	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location returns the ambulance's last reported position, if any.
func (a *Ambulance) Location() (types.Point, bool) {
	if a.Lat == nil || a.Lng == nil {
		return types.Point{}, false
	}
	return types.Point{Lat: *a.Lat, Lng: *a.Lng}, true
}

// Dispatchable reports whether the unit can be committed to an emergency.
func (a *Ambulance) Dispatchable() bool {
	return a.Status == StatusIdle
}

// CreateAmbulanceRequest is the request to register an ambulance
type CreateAmbulanceRequest struct {
	OperatorID types.ID `json:"operator_id"`
	Callsign   string   `json:"callsign"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// UpdatePositionRequest is the request to report a new position
type UpdatePositionRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
