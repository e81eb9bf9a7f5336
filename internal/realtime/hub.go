package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/shared/metrics"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// Event is a message delivered to hospital dashboard subscribers.
type Event struct {
	// Type identifies the payload: "emergency.created" or "emergency.updated".
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans emergency events out to per-hospital subscribers. Each
// subscriber receives every event published for its hospital, in publish
// order, for as long as the subscription is open. Events for other
// hospitals are never delivered.
type Hub struct {
	mu     sync.RWMutex
	subs   map[types.ID]map[*Subscription]struct{}
	logger zerolog.Logger
}

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[types.ID]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe opens a subscription for one hospital's events.
// The caller must Close the subscription when done.
func (h *Hub) Subscribe(hospitalID types.ID) *Subscription {
	sub := newSubscription(h, hospitalID)

	h.mu.Lock()
	set, ok := h.subs[hospitalID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[hospitalID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	metrics.SubscriberOpened()
	h.logger.Debug().Str("hospital_id", hospitalID.String()).Msg("subscription opened")
	return sub
}

// Publish delivers an event to every open subscription for the hospital.
// It never blocks on slow consumers. Publishes hold the write lock so
// concurrent callers enqueue in the same order for every subscriber.
func (h *Hub) Publish(hospitalID types.ID, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[hospitalID] {
		sub.enqueue(event)
		metrics.RecordEventDelivered()
	}
}

// Subscribers reports how many subscriptions are open for a hospital
func (h *Hub) Subscribers(hospitalID types.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[hospitalID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.hospitalID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.hospitalID)
	}
	metrics.SubscriberClosed()
	h.logger.Debug().Str("hospital_id", sub.hospitalID.String()).Msg("subscription closed")
}

// Subscription is one hospital dashboard's ordered event feed.
// Events queue without bound between publish and receive, so a slow
// reader delays only itself and loses nothing.
type Subscription struct {
	hub        *Hub
	hospitalID types.ID

	mu      sync.Mutex
	queue   []Event
	wake    chan struct{}
	closed  bool
	closeCh chan struct{}
}

func newSubscription(hub *Hub, hospitalID types.ID) *Subscription {
	return &Subscription{
		hub:        hub,
		hospitalID: hospitalID,
		wake:       make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
	}
}

// HospitalID returns the hospital this subscription follows
func (s *Subscription) HospitalID() types.ID {
	return s.hospitalID
}

func (s *Subscription) enqueue(event Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or the done channel closes.
// Events come back in the order they were published.
func (s *Subscription) Next(done <-chan struct{}) (Event, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return event, true
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return Event{}, false
		}

		select {
		case <-s.wake:
		case <-s.closeCh:
		case <-done:
			return Event{}, false
		}
	}
}

// TryNext returns the next queued event without blocking.
func (s *Subscription) TryNext() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return Event{}, false
	}
	event := s.queue[0]
	s.queue = s.queue[1:]
	return event, true
}

// Close detaches the subscription from the hub and releases its resources.
// Close is idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	close(s.closeCh)
	s.mu.Unlock()

	s.hub.remove(s)
}
