package ranking

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Handler provides HTTP handlers for candidate ranking
type Handler struct {
	ranker Ranker
}

// NewHandler creates a new ranking handler
func NewHandler(ranker Ranker) *Handler {
	return &Handler{ranker: ranker}
}

// Routes registers the candidate routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRoles(auth.RoleOperator))

	r.Get("/ambulances", h.Ambulances)
	r.Get("/hospitals", h.Hospitals)

	return r
}

// Ambulances returns the closest idle units to a location
func (h *Handler) Ambulances(w http.ResponseWriter, r *http.Request) {
	origin, k, err := parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	candidates, err := h.ranker.RankAmbulances(r.Context(), origin, k)
	if err != nil {
		writeError(w, err)
		return
	}
	if candidates == nil {
		candidates = []AmbulanceCandidate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": candidates})
}

// Hospitals returns the best facilities for a location
func (h *Handler) Hospitals(w http.ResponseWriter, r *http.Request) {
	origin, k, err := parseQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	candidates, err := h.ranker.RankHospitals(r.Context(), origin, k)
	if err != nil {
		writeError(w, err)
		return
	}
	if candidates == nil {
		candidates = []HospitalCandidate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": candidates})
}

func parseQuery(r *http.Request) (types.Point, int, error) {
	origin, err := types.ParsePoint(r.URL.Query().Get("lat"), r.URL.Query().Get("lng"))
	if err != nil {
		return types.Point{}, 0, errors.InvalidInput(err.Error())
	}

	k := DefaultLimit
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err = strconv.Atoi(raw)
		if err != nil {
			return types.Point{}, 0, errors.InvalidInput("invalid candidate limit")
		}
	}
	if k <= 0 {
		return types.Point{}, 0, errors.InvalidInput("candidate limit must be positive")
	}

	return origin, k, nil
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
