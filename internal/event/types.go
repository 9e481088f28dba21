package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "state.updated").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers
const (
	TypeSessionInitialized  = "session.initialized"
	TypeStateUpdated        = "state.updated"
	TypeSubscriptionStarted = "subscription.started"
	TypeSubscriptionEnded   = "subscription.ended"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// SessionInitializedEvent is emitted once a session has been fully constructed.
type SessionInitializedEvent struct {
	baseEvent
	ProjectID string
	Strategy  string // Credential strategy that was selected
	Realtime  bool   // Whether the realtime tree handle was registered
}

// NewSessionInitializedEvent creates a SessionInitializedEvent.
func NewSessionInitializedEvent(projectID, strategy string, realtime bool) SessionInitializedEvent {
	return SessionInitializedEvent{
		baseEvent: newBaseEvent(TypeSessionInitialized),
		ProjectID: projectID,
		Strategy:  strategy,
		Realtime:  realtime,
	}
}

// StateUpdatedEvent is emitted after a merge-write was accepted by the store.
type StateUpdatedEvent struct {
	baseEvent
	Collection string
	Key        string
	Fields     []string // Caller-supplied field names, sorted
}

// NewStateUpdatedEvent creates a StateUpdatedEvent.
func NewStateUpdatedEvent(collection, key string, fields []string) StateUpdatedEvent {
	return StateUpdatedEvent{
		baseEvent:  newBaseEvent(TypeStateUpdated),
		Collection: collection,
		Key:        key,
		Fields:     fields,
	}
}

// SubscriptionStartedEvent is emitted when a document listener is registered.
type SubscriptionStartedEvent struct {
	baseEvent
	SubscriptionID string
	Collection     string
	Key            string
}

// NewSubscriptionStartedEvent creates a SubscriptionStartedEvent.
func NewSubscriptionStartedEvent(id, collection, key string) SubscriptionStartedEvent {
	return SubscriptionStartedEvent{
		baseEvent:      newBaseEvent(TypeSubscriptionStarted),
		SubscriptionID: id,
		Collection:     collection,
		Key:            key,
	}
}

// SubscriptionEndedEvent is emitted when a subscription's delivery loop exits.
type SubscriptionEndedEvent struct {
	baseEvent
	SubscriptionID string
	Collection     string
	Key            string
	Delivered      int   // Number of snapshots handed to the handler
	Err            error // Terminal listener error, nil on cancel or teardown
}

// NewSubscriptionEndedEvent creates a SubscriptionEndedEvent.
func NewSubscriptionEndedEvent(id, collection, key string, delivered int, err error) SubscriptionEndedEvent {
	return SubscriptionEndedEvent{
		baseEvent:      newBaseEvent(TypeSubscriptionEnded),
		SubscriptionID: id,
		Collection:     collection,
		Key:            key,
		Delivered:      delivered,
		Err:            err,
	}
}
