package emergency

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Handler provides HTTP handlers for the emergency module
type Handler struct {
	service *Service
}

// NewHandler creates a new emergency handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the emergency routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/{emergencyID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/status", h.Transition)
	})

	return r
}

// Get gets an emergency by ID
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "emergencyID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid emergency ID"))
		return
	}

	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// Transition changes the emergency's status
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "emergencyID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid emergency ID"))
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body"))
		return
	}

	actor := auth.GetActor(r.Context())
	e, err := h.service.Transition(r.Context(), actor, id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// ListForHospital lists a hospital's emergencies in creation order.
// Mounted under the hospital route tree.
func (h *Handler) ListForHospital(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := types.ParseID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid hospital ID"))
		return
	}

	actor := auth.GetActor(r.Context())
	emergencies, err := h.service.ListForHospital(r.Context(), actor, hospitalID)
	if err != nil {
		writeError(w, err)
		return
	}
	if emergencies == nil {
		emergencies = []*Emergency{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": emergencies})
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
