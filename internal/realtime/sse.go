package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lifeline-ems/dispatch/internal/shared/auth"
	"github.com/lifeline-ems/dispatch/internal/shared/config"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Handler serves hospital emergency feeds over server-sent events
type Handler struct {
	hub       *Hub
	heartbeat time.Duration
}

// NewHandler creates a new SSE handler
func NewHandler(hub *Hub, cfg config.RealtimeConfig) *Handler {
	heartbeat := time.Duration(cfg.HeartbeatSeconds) * time.Second
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Handler{hub: hub, heartbeat: heartbeat}
}

// Stream streams the hospital's emergency events until the client
// disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := types.ParseID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, errors.InvalidInput("invalid hospital ID"))
		return
	}

	actor := auth.GetActor(r.Context())
	if !actor.OwnsHospital(hospitalID) {
		writeError(w, errors.Forbidden("stream is only available to the owning hospital"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errors.Internal(fmt.Errorf("response writer does not support streaming")))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.hub.Subscribe(hospitalID)
	defer sub.Close()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	done := r.Context().Done()

	// A single pump goroutine preserves publish order between the
	// subscription queue and the select loop below.
	events := make(chan Event)
	go func() {
		defer close(events)
		for {
			event, ok := sub.Next(done)
			if !ok {
				return
			}
			select {
			case events <- event:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
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
