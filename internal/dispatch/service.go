package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/emergency"
	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/realtime"
	"github.com/lifeline-ems/dispatch/internal/routing"
	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/events"
	"github.com/lifeline-ems/dispatch/internal/shared/metrics"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Request carries everything needed to dispatch one ambulance to one
// incident with one destination hospital.
type Request struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Details string  `json:"details"`

	AmbulanceID types.ID `json:"ambulance_id"`
	HospitalID  types.ID `json:"hospital_id"`
}

// Coordinator runs the dispatch sequence: validate, resolve the parties,
// fetch an ETA, then commit the assignment atomically.
type Coordinator struct {
	emergencies emergency.Repository
	ambulances  ambulance.Repository
	hospitals   hospital.Repository
	estimator   routing.Estimator
	hub         *realtime.Hub
	journal     events.Journal
	logger      zerolog.Logger
}

// NewCoordinator creates a new dispatch coordinator
func NewCoordinator(
	emergencies emergency.Repository,
	ambulances ambulance.Repository,
	hospitals hospital.Repository,
	estimator routing.Estimator,
	hub *realtime.Hub,
	journal events.Journal,
	logger zerolog.Logger,
) *Coordinator {
	if journal == nil {
		journal = events.NopJournal{}
	}
	return &Coordinator{
		emergencies: emergencies,
		ambulances:  ambulances,
		hospitals:   hospitals,
		estimator:   estimator,
		hub:         hub,
		journal:     journal,
		logger:      logger,
	}
}

// Dispatch commits one ambulance to one emergency. The commitment is
// all-or-nothing: when two dispatchers race for the same unit, exactly
// one wins and the loser gets ErrAmbulanceUnavailable with no partial
// state left behind.
func (c *Coordinator) Dispatch(ctx context.Context, actor *auth.Actor, req Request) (*emergency.Emergency, error) {
	patient := types.Point{Lat: req.Lat, Lng: req.Lng}
	if err := patient.Validate(); err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	if req.AmbulanceID.IsZero() {
		return nil, errors.InvalidInput("ambulance_id is required")
	}
	if req.HospitalID.IsZero() {
		return nil, errors.InvalidInput("hospital_id is required")
	}

	a, err := c.ambulances.Get(ctx, req.AmbulanceID)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.Role == auth.RoleOperator && a.OperatorID != actor.ID {
		return nil, errors.Forbidden("ambulance belongs to another operator")
	}
	if !a.Dispatchable() {
		metrics.RecordDispatch("ambulance_unavailable")
		return nil, errors.AmbulanceUnavailable(a.ID.String())
	}

	h, err := c.hospitals.Get(ctx, req.HospitalID)
	if err != nil {
		return nil, err
	}
	destination, ok := h.Location()
	if !ok {
		return nil, errors.HospitalLocationMissing(h.ID.String())
	}

	// The lookup happens before the commit so a slow provider cannot
	// hold row locks; a failed lookup degrades to 0 and never blocks
	// the dispatch itself.
	eta := c.estimator.EstimateMinutes(ctx, patient, destination)

	e := &emergency.Emergency{
		ID:          types.NewID(),
		PatientLat:  req.Lat,
		PatientLng:  req.Lng,
		Details:     req.Details,
		AmbulanceID: a.ID,
		HospitalID:  h.ID,
		ETAMinutes:  eta,
		Status:      emergency.StatusEnRoute,
	}

	if err := c.emergencies.CreateWithAssignment(ctx, e); err != nil {
		if errors.Is(err, errors.ErrAmbulanceUnavailable) {
			metrics.RecordDispatch("ambulance_unavailable")
		} else {
			metrics.RecordDispatch("error")
		}
		return nil, err
	}

	metrics.RecordDispatch("committed")
	c.logger.Info().
		Str("emergency_id", e.ID.String()).
		Str("ambulance_id", a.ID.String()).
		Str("hospital_id", h.ID.String()).
		Int("eta_minutes", eta).
		Msg("ambulance dispatched")

	c.hub.Publish(h.ID, realtime.Event{
		Type: "emergency.created",
		Data: e,
	})

	if err := c.journal.Append(ctx, events.NewEvent("emergency", events.TypeEmergencyCreated, map[string]any{
		"emergency_id": e.ID,
		"ambulance_id": a.ID,
		"hospital_id":  h.ID,
		"eta_minutes":  eta,
	})); err != nil {
		c.logger.Warn().Err(err).Msg("failed to journal dispatch")
	}

	return e, nil
}
