package dispatch

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
)

// Handler provides HTTP handlers for dispatching
type Handler struct {
	coordinator *Coordinator
}

// NewHandler creates a new dispatch handler
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// Routes registers the dispatch routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireRoles(auth.RoleOperator)).Post("/", h.Dispatch)
	return r
}

// Dispatch commits an ambulance to an emergency
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body"))
		return
	}

	actor := auth.GetActor(r.Context())
	e, err := h.coordinator.Dispatch(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
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
