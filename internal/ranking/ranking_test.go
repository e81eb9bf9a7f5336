package ranking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

func addAmbulance(t *testing.T, repo *ambulance.MemoryRepository, callsign string, status ambulance.Status, lat, lng float64) *ambulance.Ambulance {
	t.Helper()
	a := &ambulance.Ambulance{
		ID:         types.NewID(),
		OperatorID: types.NewID(),
		Callsign:   callsign,
		Status:     status,
		Lat:        &lat,
		Lng:        &lng,
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("create ambulance: %v", err)
	}
	return a
}

func addHospital(t *testing.T, repo hospital.Repository, name string, lat, lng float64, c hospital.Capacity) *hospital.Hospital {
	t.Helper()
	h := &hospital.Hospital{
		ID:             types.NewID(),
		OrganizationID: types.NewID(),
		Name:           name,
		Lat:            &lat,
		Lng:            &lng,
		Capacity:       c,
		ReadinessScore: hospital.ReadinessScore(c),
	}
	if err := repo.Create(context.Background(), h); err != nil {
		t.Fatalf("create hospital: %v", err)
	}
	return h
}

func TestRankAmbulancesClosestFirst(t *testing.T) {
	ctx := context.Background()
	ambulances := ambulance.NewMemoryRepository()
	ranker := NewMemoryRanker(ambulances, hospital.NewMemoryRepository())

	origin := types.Point{Lat: 44.80, Lng: 20.45}
	far := addAmbulance(t, ambulances, "FAR", ambulance.StatusIdle, 45.30, 20.45)
	near := addAmbulance(t, ambulances, "NEAR", ambulance.StatusIdle, 44.81, 20.45)
	mid := addAmbulance(t, ambulances, "MID", ambulance.StatusIdle, 44.95, 20.45)

	candidates, err := ranker.RankAmbulances(ctx, origin, 3)
	if err != nil {
		t.Fatalf("RankAmbulances: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("len = %d, want 3", len(candidates))
	}

	wantOrder := []types.ID{near.ID, mid.ID, far.ID}
	for i, want := range wantOrder {
		if candidates[i].Ambulance.ID != want {
			t.Errorf("position %d: got %s, want %s", i, candidates[i].Ambulance.Callsign, want)
		}
	}

	for i := 1; i < len(candidates); i++ {
		if candidates[i].DistanceKm < candidates[i-1].DistanceKm {
			t.Error("candidates not sorted by distance")
		}
	}
}

func TestRankAmbulancesExcludesCommitted(t *testing.T) {
	ctx := context.Background()
	ambulances := ambulance.NewMemoryRepository()
	ranker := NewMemoryRanker(ambulances, hospital.NewMemoryRepository())

	origin := types.Point{Lat: 44.80, Lng: 20.45}
	addAmbulance(t, ambulances, "BUSY", ambulance.StatusOnCall, 44.80, 20.45)
	idle := addAmbulance(t, ambulances, "IDLE", ambulance.StatusIdle, 44.90, 20.45)

	candidates, err := ranker.RankAmbulances(ctx, origin, 10)
	if err != nil {
		t.Fatalf("RankAmbulances: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("len = %d, want 1", len(candidates))
	}
	if candidates[0].Ambulance.ID != idle.ID {
		t.Error("committed unit appeared in candidates")
	}
}

func TestRankAmbulancesHonorsLimit(t *testing.T) {
	ctx := context.Background()
	ambulances := ambulance.NewMemoryRepository()
	ranker := NewMemoryRanker(ambulances, hospital.NewMemoryRepository())

	origin := types.Point{Lat: 44.80, Lng: 20.45}
	for i := 0; i < 7; i++ {
		addAmbulance(t, ambulances, "A", ambulance.StatusIdle, 44.80+float64(i)*0.01, 20.45)
	}

	candidates, err := ranker.RankAmbulances(ctx, origin, 3)
	if err != nil {
		t.Fatalf("RankAmbulances: %v", err)
	}
	if len(candidates) != 3 {
		t.Errorf("len = %d, want 3", len(candidates))
	}
}

func TestRankAmbulancesRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	ranker := NewMemoryRanker(ambulance.NewMemoryRepository(), hospital.NewMemoryRepository())

	_, err := ranker.RankAmbulances(ctx, types.Point{Lat: 44.8, Lng: 20.45}, 0)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("k=0: expected invalid input, got %v", err)
	}

	_, err = ranker.RankAmbulances(ctx, types.Point{Lat: 95, Lng: 20.45}, 3)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("bad latitude: expected invalid input, got %v", err)
	}
}

func TestRankHospitalsBlendsReadinessAndDistance(t *testing.T) {
	ctx := context.Background()
	hospitals := hospital.NewMemoryRepository()
	ranker := NewMemoryRanker(ambulance.NewMemoryRepository(), hospitals)

	origin := types.Point{Lat: 44.80, Lng: 20.45}

	// Ready but distant.
	ready := addHospital(t, hospitals, "Ready", 45.25, 20.45, hospital.Capacity{FreeERs: 10, ICUBeds: 10})
	// Nearby with modest readiness.
	near := addHospital(t, hospitals, "Near", 44.81, 20.45, hospital.Capacity{FreeERs: 2, ICUBeds: 1})
	// Nearby but empty.
	addHospital(t, hospitals, "Empty", 44.81, 20.46, hospital.Capacity{})

	candidates, err := ranker.RankHospitals(ctx, origin, 3)
	if err != nil {
		t.Fatalf("RankHospitals: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("len = %d, want 3", len(candidates))
	}

	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[i-1].Score {
			t.Error("candidates not sorted by score")
		}
	}

	// The nearby hospital beats the distant one despite lower readiness:
	// readiness 1.1 at ~1 km scores higher than readiness 7.0 at ~50 km.
	if candidates[0].Hospital.ID != near.ID {
		t.Errorf("best candidate = %s, want %s", candidates[0].Hospital.Name, near.Name)
	}
	if candidates[2].Hospital.ID == ready.ID {
		t.Error("distant ready hospital ranked below the empty one")
	}
}

func TestHandlerEmptyCandidateList(t *testing.T) {
	handler := NewHandler(NewMemoryRanker(ambulance.NewMemoryRepository(), hospital.NewMemoryRepository()))

	endpoints := map[string]http.HandlerFunc{
		"/ambulances": handler.Ambulances,
		"/hospitals":  handler.Hospitals,
	}
	for path, serve := range endpoints {
		req := httptest.NewRequest(http.MethodGet, path+"?lat=44.8&lng=20.45", nil)
		rec := httptest.NewRecorder()
		serve(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"data":[]`) {
			t.Errorf("%s: body = %s, want an empty list", path, rec.Body.String())
		}
	}
}

func TestRankHospitalsSkipsMissingLocation(t *testing.T) {
	ctx := context.Background()
	hospitals := hospital.NewMemoryRepository()
	ranker := NewMemoryRanker(ambulance.NewMemoryRepository(), hospitals)

	h := &hospital.Hospital{
		ID:             types.NewID(),
		OrganizationID: types.NewID(),
		Name:           "Nowhere",
		Capacity:       hospital.Capacity{FreeERs: 5},
		ReadinessScore: 2.0,
	}
	if err := hospitals.Create(ctx, h); err != nil {
		t.Fatalf("create hospital: %v", err)
	}

	candidates, err := ranker.RankHospitals(ctx, types.Point{Lat: 44.8, Lng: 20.45}, 3)
	if err != nil {
		t.Fatalf("RankHospitals: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("len = %d, want 0", len(candidates))
	}
}
