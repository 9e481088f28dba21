// Package event provides a pub-sub event bus for statebridge lifecycle
// notifications.
//
// The session manager publishes an event when a session comes up, after
// every successful state write, and when a document subscription starts or
// ends. Components that want to observe the bridge (the CLI, metrics
// exporters in the embedding process) subscribe to the bus instead of
// wrapping the manager.
//
// # Event Types
//
//   - [SessionInitializedEvent] ("session.initialized")
//   - [StateUpdatedEvent] ("state.updated")
//   - [SubscriptionStartedEvent] ("subscription.started")
//   - [SubscriptionEndedEvent] ("subscription.ended")
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine and are protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	id := bus.Subscribe(event.TypeStateUpdated, func(e event.Event) {
//	    updated := e.(event.StateUpdatedEvent)
//	    fmt.Println(updated.Collection, updated.Key)
//	})
//	defer bus.Unsubscribe(id)
package event
