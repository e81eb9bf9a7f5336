package events

import (
	"context"
	"time"

	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Event is a domain event appended to the dispatch journal.
type Event struct {
	ID         types.ID               `json:"id"`
	Type       string                 `json:"type"`
	Stream     string                 `json:"stream"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// Event types emitted by the engine.
const (
	TypeEmergencyCreated        = "emergency.created"
	TypeEmergencyTransition     = "emergency.transitioned"
	TypeHospitalCapacityUpdated = "hospital.capacity_updated"
)

// NewEvent builds an event for the given stream
func NewEvent(stream, eventType string, data map[string]interface{}) Event {
	return Event{
		ID:         types.NewID(),
		Type:       eventType,
		Stream:     stream,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Journal appends domain events for audit and replay.
// Publishing is best effort: the dispatch path never blocks on the journal.
type Journal interface {
	Append(ctx context.Context, event Event) error
	Close() error
}

// NopJournal discards events. Used when no event store is configured.
type NopJournal struct{}

func (NopJournal) Append(ctx context.Context, event Event) error { return nil }
func (NopJournal) Close() error                                  { return nil }
