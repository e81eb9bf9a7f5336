package emergency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/realtime"
	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from  Status
		to    Status
		legal bool
	}{
		{StatusEnRoute, StatusArrived, true},
		{StatusArrived, StatusAccepted, true},
		{StatusArrived, StatusRejected, true},

		{StatusEnRoute, StatusAccepted, false},
		{StatusEnRoute, StatusRejected, false},
		{StatusArrived, StatusEnRoute, false},
		{StatusAccepted, StatusRejected, false},
		{StatusAccepted, StatusArrived, false},
		{StatusRejected, StatusAccepted, false},
		{StatusEnRoute, StatusEnRoute, false},
		{StatusArrived, StatusArrived, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.legal {
			t.Errorf("%s -> %s: legal = %v, want %v", tt.from, tt.to, got, tt.legal)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusEnRoute.Terminal() || StatusArrived.Terminal() {
		t.Error("en_route and arrived must not be terminal")
	}
	if !StatusAccepted.Terminal() || !StatusRejected.Terminal() {
		t.Error("accepted and rejected must be terminal")
	}
}

type fixture struct {
	service    *Service
	repo       *MemoryRepository
	ambulances *ambulance.MemoryRepository
	hub        *realtime.Hub

	operatorID types.ID
	hospitalID types.ID
	emergency  *Emergency
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	ambulances := ambulance.NewMemoryRepository()
	repo := NewMemoryRepository(ambulances)
	hub := realtime.NewHub(zerolog.Nop())
	service := NewService(repo, ambulances, hub, nil, zerolog.Nop())

	operatorID := types.NewID()
	a := &ambulance.Ambulance{
		ID:         types.NewID(),
		OperatorID: operatorID,
		Callsign:   "A-1",
		Status:     ambulance.StatusIdle,
	}
	if err := ambulances.Create(ctx, a); err != nil {
		t.Fatalf("create ambulance: %v", err)
	}

	hospitalID := types.NewID()
	e := &Emergency{
		ID:          types.NewID(),
		PatientLat:  44.8,
		PatientLng:  20.5,
		AmbulanceID: a.ID,
		HospitalID:  hospitalID,
		ETAMinutes:  12,
		Status:      StatusEnRoute,
	}
	if err := repo.CreateWithAssignment(ctx, e); err != nil {
		t.Fatalf("create emergency: %v", err)
	}

	return &fixture{
		service:    service,
		repo:       repo,
		ambulances: ambulances,
		hub:        hub,
		operatorID: operatorID,
		hospitalID: hospitalID,
		emergency:  e,
	}
}

func (f *fixture) hospitalActor() *auth.Actor {
	return &auth.Actor{ID: types.NewID(), Role: auth.RoleHospital, HospitalID: f.hospitalID}
}

func (f *fixture) operatorActor() *auth.Actor {
	return &auth.Actor{ID: f.operatorID, Role: auth.RoleOperator}
}

func TestTransitionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	updated, err := f.service.Transition(ctx, f.operatorActor(), f.emergency.ID, StatusArrived)
	if err != nil {
		t.Fatalf("en_route -> arrived: %v", err)
	}
	if updated.Status != StatusArrived {
		t.Fatalf("status = %s, want %s", updated.Status, StatusArrived)
	}

	updated, err = f.service.Transition(ctx, f.hospitalActor(), f.emergency.ID, StatusAccepted)
	if err != nil {
		t.Fatalf("arrived -> accepted: %v", err)
	}
	if updated.Status != StatusAccepted {
		t.Fatalf("status = %s, want %s", updated.Status, StatusAccepted)
	}
}

func TestTransitionRejectsSkippingArrival(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.Transition(ctx, f.hospitalActor(), f.emergency.ID, StatusAccepted)
	if err == nil {
		t.Fatal("expected en_route -> accepted to fail")
	}
	if !errors.Is(err, errors.ErrIllegalTransition) {
		t.Errorf("expected illegal transition error, got %v", err)
	}

	stored, err := f.service.Get(ctx, f.emergency.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != StatusEnRoute {
		t.Errorf("rejected transition changed status to %s", stored.Status)
	}
}

func TestTransitionRejectsTerminalMoves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.service.Transition(ctx, f.operatorActor(), f.emergency.ID, StatusArrived); err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if _, err := f.service.Transition(ctx, f.hospitalActor(), f.emergency.ID, StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, err := f.service.Transition(ctx, f.hospitalActor(), f.emergency.ID, StatusAccepted)
	if err == nil {
		t.Fatal("expected rejected -> accepted to fail")
	}
	if !errors.Is(err, errors.ErrIllegalTransition) {
		t.Errorf("expected illegal transition error, got %v", err)
	}
}

func TestTransitionAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A hospital cannot report arrival.
	if _, err := f.service.Transition(ctx, f.hospitalActor(), f.emergency.ID, StatusArrived); err == nil {
		t.Error("expected hospital arrival report to be forbidden")
	}

	// A stranger operator cannot report arrival either.
	stranger := &auth.Actor{ID: types.NewID(), Role: auth.RoleOperator}
	if _, err := f.service.Transition(ctx, stranger, f.emergency.ID, StatusArrived); err == nil {
		t.Error("expected unassigned operator arrival report to be forbidden")
	}

	if _, err := f.service.Transition(ctx, f.operatorActor(), f.emergency.ID, StatusArrived); err != nil {
		t.Fatalf("assigned operator arrival: %v", err)
	}

	// Another hospital cannot accept the arrival.
	otherHospital := &auth.Actor{ID: types.NewID(), Role: auth.RoleHospital, HospitalID: types.NewID()}
	_, err := f.service.Transition(ctx, otherHospital, f.emergency.ID, StatusAccepted)
	if err == nil {
		t.Fatal("expected foreign hospital acceptance to be forbidden")
	}
	if !errors.Is(err, errors.ErrForbidden) {
		t.Errorf("expected forbidden error, got %v", err)
	}
}

func TestTransitionPublishesUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sub := f.hub.Subscribe(f.hospitalID)
	defer sub.Close()

	if _, err := f.service.Transition(ctx, f.operatorActor(), f.emergency.ID, StatusArrived); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	event, ok := sub.TryNext()
	if !ok {
		t.Fatal("expected an update event on the hospital feed")
	}
	if event.Type != "emergency.updated" {
		t.Errorf("event type = %s, want emergency.updated", event.Type)
	}
	e, ok := event.Data.(*Emergency)
	if !ok {
		t.Fatalf("event payload is %T, want *Emergency", event.Data)
	}
	if e.Status != StatusArrived {
		t.Errorf("payload status = %s, want %s", e.Status, StatusArrived)
	}
}

func TestListForHospitalOrderAndOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Add a second emergency for the same hospital.
	a := &ambulance.Ambulance{ID: types.NewID(), OperatorID: f.operatorID, Callsign: "A-2", Status: ambulance.StatusIdle}
	if err := f.ambulances.Create(ctx, a); err != nil {
		t.Fatalf("create ambulance: %v", err)
	}
	second := &Emergency{
		ID:          types.NewID(),
		AmbulanceID: a.ID,
		HospitalID:  f.hospitalID,
		Status:      StatusEnRoute,
	}
	if err := f.repo.CreateWithAssignment(ctx, second); err != nil {
		t.Fatalf("create emergency: %v", err)
	}

	list, err := f.service.ListForHospital(ctx, f.hospitalActor(), f.hospitalID)
	if err != nil {
		t.Fatalf("ListForHospital: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != f.emergency.ID || list[1].ID != second.ID {
		t.Error("emergencies not returned in creation order")
	}

	otherHospital := &auth.Actor{ID: types.NewID(), Role: auth.RoleHospital, HospitalID: types.NewID()}
	if _, err := f.service.ListForHospital(ctx, otherHospital, f.hospitalID); err == nil {
		t.Error("expected foreign hospital list to be forbidden")
	}
}

func TestListForHospitalEmptyQueue(t *testing.T) {
	ambulances := ambulance.NewMemoryRepository()
	service := NewService(NewMemoryRepository(ambulances), ambulances, realtime.NewHub(zerolog.Nop()), nil, zerolog.Nop())
	handler := NewHandler(service)

	hospitalID := types.NewID()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("hospitalID", hospitalID.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = auth.WithActor(ctx, &auth.Actor{ID: types.NewID(), Role: auth.RoleHospital, HospitalID: hospitalID})

	rec := httptest.NewRecorder()
	handler.ListForHospital(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("body = %s, want an empty list", rec.Body.String())
	}
}

func TestCreateWithAssignmentConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// The fixture's ambulance is already committed.
	dup := &Emergency{
		ID:          types.NewID(),
		AmbulanceID: f.emergency.AmbulanceID,
		HospitalID:  f.hospitalID,
		Status:      StatusEnRoute,
	}
	err := f.repo.CreateWithAssignment(ctx, dup)
	if err == nil {
		t.Fatal("expected second assignment of the same ambulance to fail")
	}
	if !errors.Is(err, errors.ErrAmbulanceUnavailable) {
		t.Errorf("expected ambulance unavailable error, got %v", err)
	}

	if _, getErr := f.repo.Get(ctx, dup.ID); getErr == nil {
		t.Error("failed assignment must not record an emergency")
	}
}
