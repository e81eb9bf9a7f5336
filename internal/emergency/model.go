package emergency

import (
	"time"

	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Status defines the lifecycle state of an emergency
type Status string

const (
	// StatusEnRoute means the ambulance is driving to the hospital.
	StatusEnRoute Status = "en_route"
	// StatusArrived means the ambulance reached the hospital.
	StatusArrived Status = "arrived"
	// StatusAccepted means the hospital admitted the patient. Terminal.
	StatusAccepted Status = "accepted"
	// StatusRejected means the hospital turned the patient away. Terminal.
	StatusRejected Status = "rejected"
)

// legalTransitions is the full transition relation. Anything absent is
// rejected, including self-transitions.
var legalTransitions = map[Status][]Status{
	StatusEnRoute: {StatusArrived},
	StatusArrived: {StatusAccepted, StatusRejected},
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusEnRoute, StatusArrived, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CanTransitionTo reports whether s -> to is a legal transition
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range legalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Emergency represents one dispatched incident. It is created already
// bound to an ambulance and a destination hospital; the binding never
// changes afterwards.
type Emergency struct {
	ID types.ID `json:"id"`

	PatientLat float64 `json:"patient_lat"`
	PatientLng float64 `json:"patient_lng"`
	Details    string  `json:"details"`

	AmbulanceID types.ID `json:"ambulance_id"`
	HospitalID  types.ID `json:"hospital_id"`

	// ETAMinutes is the driving estimate captured at dispatch time.
	// Zero when the routing provider could not be reached.
	ETAMinutes int    `json:"eta_minutes"`
	Status     Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PatientLocation returns the incident coordinates
func (e *Emergency) PatientLocation() types.Point {
	return types.Point{Lat: e.PatientLat, Lng: e.PatientLng}
}

// TransitionRequest is the request to change an emergency's status
type TransitionRequest struct {
	Status Status `json:"status"`
}
