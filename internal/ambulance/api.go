package ambulance

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Handler provides HTTP handlers for the ambulance module
type Handler struct {
	repo Repository
}

// NewHandler creates a new ambulance handler
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the ambulance routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(auth.RequireRoles(auth.RoleOperator)).Get("/", h.ListMine)
	r.With(auth.RequireRoles(auth.RoleOperator)).Post("/", h.Create)

	r.Route("/{ambulanceID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.With(auth.RequireRoles(auth.RoleOperator)).Put("/position", h.UpdatePosition)
	})

	return r
}

// ListMine lists the calling operator's ambulances
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetActor(r.Context())

	ambulances, err := h.repo.ListByOperator(r.Context(), actor.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if ambulances == nil {
		ambulances = []*Ambulance{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": ambulances})
}

// Get gets an ambulance by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "ambulanceID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid ambulance ID"))
		return
	}

	a, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// Create registers a new ambulance for the calling operator
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAmbulanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body"))
		return
	}

	if req.Callsign == "" {
		writeError(w, errors.InvalidInput("callsign is required"))
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		writeError(w, errors.InvalidInput("lat and lng must be provided together"))
		return
	}
	if req.Lat != nil {
		p := types.Point{Lat: *req.Lat, Lng: *req.Lng}
		if err := p.Validate(); err != nil {
			writeError(w, errors.InvalidInput(err.Error()))
			return
		}
	}

	actor := auth.GetActor(r.Context())
	operatorID := actor.ID
	if actor.Role == auth.RoleAdmin && !req.OperatorID.IsZero() {
		operatorID = req.OperatorID
	}

	a := &Ambulance{
		ID:         types.NewID(),
		OperatorID: operatorID,
		Callsign:   req.Callsign,
		Status:     StatusIdle,
		Lat:        req.Lat,
		Lng:        req.Lng,
	}

	if err := h.repo.Create(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// UpdatePosition stores a newly reported position
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "ambulanceID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid ambulance ID"))
		return
	}

	var req UpdatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body"))
		return
	}

	p := types.Point{Lat: req.Lat, Lng: req.Lng}
	if err := p.Validate(); err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}

	existing, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	actor := auth.GetActor(r.Context())
	if actor.Role != auth.RoleAdmin && existing.OperatorID != actor.ID {
		writeError(w, errors.Forbidden("position can only be reported by the owning operator"))
		return
	}

	a, err := h.repo.UpdatePosition(r.Context(), id, p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
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
