package emergency

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/realtime"
	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/events"
	"github.com/lifeline-ems/dispatch/internal/shared/metrics"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Service applies emergency status transitions and notifies watchers.
type Service struct {
	repo       Repository
	ambulances ambulance.Repository
	hub        *realtime.Hub
	journal    events.Journal
	logger     zerolog.Logger
}

// NewService creates a new emergency service
func NewService(repo Repository, ambulances ambulance.Repository, hub *realtime.Hub, journal events.Journal, logger zerolog.Logger) *Service {
	if journal == nil {
		journal = events.NopJournal{}
	}
	return &Service{
		repo:       repo,
		ambulances: ambulances,
		hub:        hub,
		journal:    journal,
		logger:     logger,
	}
}

// Get retrieves an emergency by ID
func (s *Service) Get(ctx context.Context, id types.ID) (*Emergency, error) {
	return s.repo.Get(ctx, id)
}

// ListForHospital returns a hospital's emergencies in creation order.
// Only the owning hospital may read its queue.
func (s *Service) ListForHospital(ctx context.Context, actor *auth.Actor, hospitalID types.ID) ([]*Emergency, error) {
	if !actor.OwnsHospital(hospitalID) {
		return nil, errors.Forbidden("emergencies are only visible to the owning hospital")
	}
	return s.repo.ListByHospital(ctx, hospitalID)
}

// Transition moves an emergency to a new status. Legality is checked
// against the current status, authorization against the actor, and the
// write is conditional so concurrent transitions cannot both win.
func (s *Service) Transition(ctx context.Context, actor *auth.Actor, id types.ID, to Status) (*Emergency, error) {
	if !to.Valid() {
		return nil, errors.InvalidInput("unknown emergency status")
	}
	if to == StatusEnRoute {
		return nil, errors.InvalidInput("emergencies start en_route and never return to it")
	}

	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !e.Status.CanTransitionTo(to) {
		return nil, errors.IllegalTransition(string(e.Status), string(to))
	}

	if err := s.authorize(ctx, actor, e, to); err != nil {
		return nil, err
	}

	from := e.Status
	updated, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return nil, err
	}

	metrics.RecordEmergencyTransition(string(from), string(to))
	s.logger.Info().
		Str("emergency_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("emergency status changed")

	s.hub.Publish(updated.HospitalID, realtime.Event{
		Type: "emergency.updated",
		Data: updated,
	})

	if err := s.journal.Append(ctx, events.NewEvent("emergency", events.TypeEmergencyTransition, map[string]any{
		"emergency_id": updated.ID,
		"from":         from,
		"to":           to,
	})); err != nil {
		s.logger.Warn().Err(err).Msg("failed to journal emergency transition")
	}

	return updated, nil
}

// authorize enforces who may drive each transition: the destination
// hospital decides acceptance, the assigned crew reports arrival.
func (s *Service) authorize(ctx context.Context, actor *auth.Actor, e *Emergency, to Status) error {
	if actor == nil {
		return errors.Forbidden("authentication required")
	}
	if actor.Role == auth.RoleAdmin {
		return nil
	}

	switch to {
	case StatusAccepted, StatusRejected:
		if !actor.OwnsHospital(e.HospitalID) {
			return errors.Forbidden("only the destination hospital can accept or reject an arrival")
		}
		return nil
	case StatusArrived:
		if actor.Role != auth.RoleOperator {
			return errors.Forbidden("only the assigned crew can report arrival")
		}
		a, err := s.ambulances.Get(ctx, e.AmbulanceID)
		if err != nil {
			return err
		}
		if a.OperatorID != actor.ID {
			return errors.Forbidden("only the assigned crew can report arrival")
		}
		return nil
	}

	return errors.Forbidden("transition not permitted")
}
