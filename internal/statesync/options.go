package statesync

import (
	"time"

	"github.com/Iron-Ham/statebridge/internal/event"
	"github.com/Iron-Ham/statebridge/internal/logging"
)

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the dialer chosen from store.backend.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.OrNop(l)
	}
}

// WithBus attaches an event bus. When set, session, write and subscription
// lifecycle events are published to it.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithClock sets the clock used for the updated_at field.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithFileSystem replaces the file checks used while resolving credentials.
func WithFileSystem(fileExists func(string) bool, readFile func(string) ([]byte, error)) Option {
	return func(m *Manager) {
		m.fileExists = fileExists
		m.readFile = readFile
	}
}

// WriteOption adjusts a single UpdateState or StreamUpdates call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	collection string
}

// WithCollection targets collection instead of state.collection.
func WithCollection(collection string) WriteOption {
	return func(o *writeOptions) {
		o.collection = collection
	}
}
