package realtime

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

func collect(t *testing.T, sub *Subscription, n int) []Event {
	t.Helper()

	done := make(chan struct{})
	timer := time.AfterFunc(2*time.Second, func() { close(done) })
	defer timer.Stop()

	var events []Event
	for len(events) < n {
		event, ok := sub.Next(done)
		if !ok {
			t.Fatalf("subscription ended after %d of %d events", len(events), n)
		}
		events = append(events, event)
	}
	return events
}

func TestHubDeliversInPublishOrder(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hospitalID := types.NewID()

	sub := hub.Subscribe(hospitalID)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		hub.Publish(hospitalID, Event{Type: "emergency.created", Data: i})
	}

	events := collect(t, sub, 5)
	for i, event := range events {
		if event.Data != i {
			t.Errorf("event %d carried %v, want %d", i, event.Data, i)
		}
	}
}

func TestHubFiltersByHospital(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	mine := types.NewID()
	other := types.NewID()

	sub := hub.Subscribe(mine)
	defer sub.Close()

	hub.Publish(other, Event{Type: "emergency.created", Data: "other"})
	hub.Publish(mine, Event{Type: "emergency.created", Data: "mine"})
	hub.Publish(other, Event{Type: "emergency.created", Data: "other"})

	events := collect(t, sub, 1)
	if events[0].Data != "mine" {
		t.Errorf("delivered %v, want only this hospital's event", events[0].Data)
	}

	if _, ok := sub.TryNext(); ok {
		t.Error("received an event published for another hospital")
	}
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hospitalID := types.NewID()

	a := hub.Subscribe(hospitalID)
	defer a.Close()
	b := hub.Subscribe(hospitalID)
	defer b.Close()

	hub.Publish(hospitalID, Event{Type: "emergency.created", Data: "x"})

	for _, sub := range []*Subscription{a, b} {
		events := collect(t, sub, 1)
		if events[0].Data != "x" {
			t.Errorf("subscriber got %v, want x", events[0].Data)
		}
	}
}

func TestConcurrentPublishesShareOneOrder(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hospitalID := types.NewID()

	a := hub.Subscribe(hospitalID)
	defer a.Close()
	b := hub.Subscribe(hospitalID)
	defer b.Close()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hub.Publish(hospitalID, Event{Type: "emergency.created", Data: i})
		}(i)
	}
	wg.Wait()

	gotA := collect(t, a, n)
	gotB := collect(t, b, n)
	for i := range gotA {
		if gotA[i].Data != gotB[i].Data {
			t.Fatalf("subscribers diverged at event %d: %v vs %v", i, gotA[i].Data, gotB[i].Data)
		}
	}
}

func TestSubscriptionClose(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hospitalID := types.NewID()

	sub := hub.Subscribe(hospitalID)
	if got := hub.Subscribers(hospitalID); got != 1 {
		t.Fatalf("subscribers = %d, want 1", got)
	}

	sub.Close()
	sub.Close() // idempotent

	if got := hub.Subscribers(hospitalID); got != 0 {
		t.Errorf("subscribers after close = %d, want 0", got)
	}

	// Publishing after close must not panic or deliver.
	hub.Publish(hospitalID, Event{Type: "emergency.created"})
	if _, ok := sub.TryNext(); ok {
		t.Error("closed subscription received an event")
	}
}

func TestNextUnblocksOnDone(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub := hub.Subscribe(types.NewID())
	defer sub.Close()

	done := make(chan struct{})
	result := make(chan bool, 1)
	go func() {
		_, ok := sub.Next(done)
		result <- ok
	}()

	close(done)
	select {
	case ok := <-result:
		if ok {
			t.Error("Next returned an event after done closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not unblock when done closed")
	}
}

func TestSlowSubscriberLosesNothing(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hospitalID := types.NewID()

	sub := hub.Subscribe(hospitalID)
	defer sub.Close()

	const n = 1000
	for i := 0; i < n; i++ {
		hub.Publish(hospitalID, Event{Type: "emergency.created", Data: i})
	}

	events := collect(t, sub, n)
	for i, event := range events {
		if event.Data != i {
			t.Fatalf("event %d carried %v, want %d", i, event.Data, i)
		}
	}
}
