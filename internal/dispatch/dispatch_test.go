package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/emergency"
	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/realtime"
	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// stubEstimator returns a fixed ETA without touching the network
type stubEstimator struct {
	minutes int
}

func (s stubEstimator) EstimateMinutes(ctx context.Context, from, to types.Point) int {
	return s.minutes
}

type fixture struct {
	coordinator *Coordinator
	ambulances  *ambulance.MemoryRepository
	hospitals   *hospital.MemoryRepository
	emergencies *emergency.MemoryRepository
	hub         *realtime.Hub

	operatorID types.ID
	ambulance  *ambulance.Ambulance
	hospital   *hospital.Hospital
}

func newFixture(t *testing.T, eta int) *fixture {
	t.Helper()
	ctx := context.Background()

	ambulances := ambulance.NewMemoryRepository()
	hospitals := hospital.NewMemoryRepository()
	emergencies := emergency.NewMemoryRepository(ambulances)
	hub := realtime.NewHub(zerolog.Nop())

	coordinator := NewCoordinator(
		emergencies, ambulances, hospitals,
		stubEstimator{minutes: eta}, hub, nil, zerolog.Nop(),
	)

	operatorID := types.NewID()
	lat, lng := 44.79, 20.44
	a := &ambulance.Ambulance{
		ID:         types.NewID(),
		OperatorID: operatorID,
		Callsign:   "A-1",
		Status:     ambulance.StatusIdle,
		Lat:        &lat,
		Lng:        &lng,
	}
	if err := ambulances.Create(ctx, a); err != nil {
		t.Fatalf("create ambulance: %v", err)
	}

	hLat, hLng := 44.81, 20.46
	h := &hospital.Hospital{
		ID:             types.NewID(),
		OrganizationID: types.NewID(),
		Name:           "General Hospital",
		Lat:            &hLat,
		Lng:            &hLng,
		Capacity:       hospital.Capacity{FreeERs: 2, ICUBeds: 1},
		ReadinessScore: 1.1,
	}
	if err := hospitals.Create(ctx, h); err != nil {
		t.Fatalf("create hospital: %v", err)
	}

	return &fixture{
		coordinator: coordinator,
		ambulances:  ambulances,
		hospitals:   hospitals,
		emergencies: emergencies,
		hub:         hub,
		operatorID:  operatorID,
		ambulance:   a,
		hospital:    h,
	}
}

func (f *fixture) actor() *auth.Actor {
	return &auth.Actor{ID: f.operatorID, Role: auth.RoleOperator}
}

func (f *fixture) request() Request {
	return Request{
		Lat:         44.80,
		Lng:         20.45,
		Details:     "chest pain",
		AmbulanceID: f.ambulance.ID,
		HospitalID:  f.hospital.ID,
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 15)

	e, err := f.coordinator.Dispatch(ctx, f.actor(), f.request())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if e.Status != emergency.StatusEnRoute {
		t.Errorf("status = %s, want %s", e.Status, emergency.StatusEnRoute)
	}
	if e.ETAMinutes != 15 {
		t.Errorf("eta = %d, want 15", e.ETAMinutes)
	}
	if e.AmbulanceID != f.ambulance.ID || e.HospitalID != f.hospital.ID {
		t.Error("emergency not bound to the requested parties")
	}

	a, err := f.ambulances.Get(ctx, f.ambulance.ID)
	if err != nil {
		t.Fatalf("get ambulance: %v", err)
	}
	if a.Status != ambulance.StatusOnCall {
		t.Errorf("ambulance status = %s, want %s", a.Status, ambulance.StatusOnCall)
	}
}

func TestDispatchSucceedsWithoutETA(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	e, err := f.coordinator.Dispatch(ctx, f.actor(), f.request())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if e.ETAMinutes != 0 {
		t.Errorf("eta = %d, want 0", e.ETAMinutes)
	}
}

func TestDispatchConcurrentExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	const racers = 2
	results := make(chan error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.Dispatch(ctx, f.actor(), f.request())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, errors.ErrAmbulanceUnavailable):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if wins != 1 || conflicts != racers-1 {
		t.Errorf("wins = %d, conflicts = %d; want exactly 1 win", wins, conflicts)
	}

	list, err := f.emergencies.ListByHospital(ctx, f.hospital.ID)
	if err != nil {
		t.Fatalf("list emergencies: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("recorded %d emergencies, want 1", len(list))
	}
}

func TestDispatchRejectsCommittedAmbulance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	if _, err := f.coordinator.Dispatch(ctx, f.actor(), f.request()); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}

	_, err := f.coordinator.Dispatch(ctx, f.actor(), f.request())
	if !errors.Is(err, errors.ErrAmbulanceUnavailable) {
		t.Errorf("expected ambulance unavailable, got %v", err)
	}
}

func TestDispatchRequiresHospitalLocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	unplaced := &hospital.Hospital{
		ID:             types.NewID(),
		OrganizationID: types.NewID(),
		Name:           "Unplaced",
	}
	if err := f.hospitals.Create(ctx, unplaced); err != nil {
		t.Fatalf("create hospital: %v", err)
	}

	req := f.request()
	req.HospitalID = unplaced.ID

	_, err := f.coordinator.Dispatch(ctx, f.actor(), req)
	if !errors.Is(err, errors.ErrHospitalLocationMissing) {
		t.Errorf("expected hospital location missing, got %v", err)
	}

	// Nothing may be committed on a failed dispatch.
	a, getErr := f.ambulances.Get(ctx, f.ambulance.ID)
	if getErr != nil {
		t.Fatalf("get ambulance: %v", getErr)
	}
	if a.Status != ambulance.StatusIdle {
		t.Error("failed dispatch committed the ambulance")
	}
}

func TestDispatchValidatesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	bad := f.request()
	bad.Lat = 120
	if _, err := f.coordinator.Dispatch(ctx, f.actor(), bad); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("bad latitude: expected invalid input, got %v", err)
	}

	missing := f.request()
	missing.AmbulanceID = ""
	if _, err := f.coordinator.Dispatch(ctx, f.actor(), missing); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("missing ambulance: expected invalid input, got %v", err)
	}
}

func TestDispatchForbidsForeignAmbulance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	stranger := &auth.Actor{ID: types.NewID(), Role: auth.RoleOperator}
	_, err := f.coordinator.Dispatch(ctx, stranger, f.request())
	if !errors.Is(err, errors.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestDispatchPublishesCreatedEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)

	sub := f.hub.Subscribe(f.hospital.ID)
	defer sub.Close()

	other := f.hub.Subscribe(types.NewID())
	defer other.Close()

	e, err := f.coordinator.Dispatch(ctx, f.actor(), f.request())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	event, ok := sub.TryNext()
	if !ok {
		t.Fatal("destination hospital received no event")
	}
	if event.Type != "emergency.created" {
		t.Errorf("event type = %s, want emergency.created", event.Type)
	}
	created, ok := event.Data.(*emergency.Emergency)
	if !ok {
		t.Fatalf("event payload is %T, want *Emergency", event.Data)
	}
	if created.ID != e.ID {
		t.Error("event carries a different emergency")
	}

	if _, ok := other.TryNext(); ok {
		t.Error("another hospital received the event")
	}
}
