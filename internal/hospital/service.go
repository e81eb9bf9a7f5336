package hospital

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/events"
	"github.com/lifeline-ems/dispatch/internal/shared/metrics"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Service coordinates hospital registration and capacity updates.
// The HIS capacity feed and the HTTP API both go through UpdateCapacity,
// so the readiness score is recomputed on every write path.
type Service struct {
	repo    Repository
	journal events.Journal
	logger  zerolog.Logger
}

// NewService creates a new hospital service
func NewService(repo Repository, journal events.Journal, logger zerolog.Logger) *Service {
	if journal == nil {
		journal = events.NopJournal{}
	}
	return &Service{repo: repo, journal: journal, logger: logger}
}

// Register creates a new hospital
func (s *Service) Register(ctx context.Context, req CreateHospitalRequest) (*Hospital, error) {
	if req.Name == "" {
		return nil, errors.InvalidInput("name is required")
	}
	if req.OrganizationID.IsZero() {
		return nil, errors.InvalidInput("organization_id is required")
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		return nil, errors.InvalidInput("lat and lng must be provided together")
	}
	if req.Lat != nil {
		p := types.Point{Lat: *req.Lat, Lng: *req.Lng}
		if err := p.Validate(); err != nil {
			return nil, errors.InvalidInput(err.Error())
		}
	}
	if err := req.Capacity.Validate(); err != nil {
		return nil, err
	}

	h := &Hospital{
		ID:             types.NewID(),
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Lat:            req.Lat,
		Lng:            req.Lng,
		Capacity:       req.Capacity,
		ReadinessScore: ReadinessScore(req.Capacity),
	}

	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("hospital_id", h.ID.String()).
		Str("name", h.Name).
		Msg("hospital registered")

	return h, nil
}

// UpdateCapacity replaces the counters and recomputes the readiness score.
// Negative counters are rejected before any write.
func (s *Service) UpdateCapacity(ctx context.Context, id types.ID, c Capacity) (*Hospital, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	h, err := s.repo.UpdateCapacity(ctx, id, c, ReadinessScore(c))
	if err != nil {
		return nil, err
	}

	metrics.RecordReadinessUpdate()
	s.logger.Info().
		Str("hospital_id", id.String()).
		Float64("readiness_score", h.ReadinessScore).
		Msg("hospital capacity updated")

	if err := s.journal.Append(ctx, events.NewEvent("hospital", events.TypeHospitalCapacityUpdated, map[string]any{
		"hospital_id":     h.ID,
		"free_ers":        c.FreeERs,
		"icu_beds":        c.ICUBeds,
		"physicians":      c.Physicians,
		"specialists":     c.Specialists,
		"readiness_score": h.ReadinessScore,
	})); err != nil {
		s.logger.Warn().Err(err).Msg("failed to journal capacity update")
	}

	return h, nil
}

// Get retrieves a hospital by ID
func (s *Service) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	return s.repo.Get(ctx, id)
}

// LookupByOrganization resolves a hospital from an external organization ID
func (s *Service) LookupByOrganization(ctx context.Context, orgID types.ID) (*Hospital, error) {
	return s.repo.GetByOrganization(ctx, orgID)
}

// List retrieves all hospitals
func (s *Service) List(ctx context.Context) ([]*Hospital, error) {
	return s.repo.List(ctx)
}
