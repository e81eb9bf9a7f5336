package hospital

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Handler provides HTTP handlers for the hospital module. The hospital
// route tree also carries the emergency queue and the live stream, so
// those handlers are attached where the router is assembled.
type Handler struct {
	service *Service
}

// NewHandler creates a new hospital handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List lists all hospitals
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if hospitals == nil {
		hospitals = []*Hospital{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": hospitals})
}

// Get gets a hospital by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid hospital ID"))
		return
	}

	hospital, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hospital)
}

// Create registers a new hospital
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateHospitalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body"))
		return
	}

	hospital, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, hospital)
}

// UpdateCapacity replaces the hospital's capacity counters
func (h *Handler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid hospital ID"))
		return
	}

	actor := auth.GetActor(r.Context())
	if !actor.OwnsHospital(id) {
		writeError(w, errors.Forbidden("capacity can only be updated by the owning hospital"))
		return
	}

	var req UpdateCapacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body"))
		return
	}

	hospital, err := h.service.UpdateCapacity(r.Context(), id, Capacity{
		FreeERs:     req.FreeERs,
		ICUBeds:     req.ICUBeds,
		Physicians:  req.Physicians,
		Specialists: req.Specialists,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, hospital)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
