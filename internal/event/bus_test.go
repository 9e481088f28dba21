package event

import (
	"errors"
	"sync"
	"testing"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus(nil)

	var received Event
	id := bus.Subscribe(TypeStateUpdated, func(e Event) {
		received = e
	})
	if id == "" {
		t.Fatal("Subscribe should return a non-empty ID")
	}

	bus.Publish(NewStateUpdatedEvent("market_states", "BTC/USDT", []string{"price"}))

	updated, ok := received.(StateUpdatedEvent)
	if !ok {
		t.Fatalf("received %T, want StateUpdatedEvent", received)
	}
	if updated.Key != "BTC/USDT" || updated.Collection != "market_states" {
		t.Errorf("unexpected event payload: %+v", updated)
	}
	if updated.Timestamp().IsZero() {
		t.Error("Timestamp() should be set")
	}
}

func TestBus_PublishNoMatchingHandlers(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(TypeSessionInitialized, func(e Event) {
		t.Error("Handler should not be called for non-matching event type")
	})

	bus.Publish(NewSubscriptionStartedEvent("sub-1", "market_states", "BTC/USDT"))
}

func TestBus_NilBusPublish(t *testing.T) {
	var bus *Bus
	// Must not panic
	bus.Publish(NewSessionInitializedEvent("aatb-production", "application_default", false))
}

func TestBus_SubscribeAllOrdering(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "wildcard") })
	bus.Subscribe(TypeSubscriptionEnded, func(e Event) { order = append(order, "specific") })

	bus.Publish(NewSubscriptionEndedEvent("sub-1", "market_states", "BTC/USDT", 3, nil))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("order = %v, want [specific wildcard]", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	first := bus.Subscribe(TypeStateUpdated, func(e Event) { calls++ })
	bus.Subscribe(TypeStateUpdated, func(e Event) { calls += 10 })

	if !bus.Unsubscribe(first) {
		t.Fatal("Unsubscribe should report the subscription was found")
	}
	if bus.Unsubscribe(first) {
		t.Error("second Unsubscribe should report not found")
	}

	bus.Publish(NewStateUpdatedEvent("c", "k", nil))
	if calls != 10 {
		t.Errorf("calls = %d, want only the remaining handler (10)", calls)
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", bus.SubscriptionCount())
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus(nil)
	bus.Subscribe(TypeStateUpdated, func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after Clear, want 0", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	bus.Subscribe(TypeSubscriptionEnded, func(e Event) {
		calls++
		panic("handler panic")
	})
	bus.Subscribe(TypeSubscriptionEnded, func(e Event) {
		calls++
	})

	bus.Publish(NewSubscriptionEndedEvent("sub-1", "c", "k", 0, errors.New("listener closed")))

	if calls != 2 {
		t.Errorf("Expected both handlers to be called despite panic, got %d calls", calls)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	calls := 0
	bus.Subscribe(TypeStateUpdated, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			bus.Publish(NewStateUpdatedEvent("c", "k", nil))
		})
	}
	wg.Wait()

	if calls != 100 {
		t.Errorf("Expected 100 calls, got %d", calls)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id := bus.Subscribe(TypeStateUpdated, func(e Event) {})
			bus.Unsubscribe(id)
		})
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions after concurrent add/remove, got %d", bus.SubscriptionCount())
	}
}
