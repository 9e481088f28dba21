package store

import (
	"context"
	"errors"
	"time"
)

// ErrListenerStopped is returned by Listener.Next once the listener has been
// stopped, its context canceled, or its store closed.
var ErrListenerStopped = errors.New("listener stopped")

// ErrListenerEnded is returned by Listener.Next when the backend ends the
// stream without Stop having been called, for example after a network failure.
var ErrListenerEnded = errors.New("listener ended by the store")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

type sentinel string

// ServerTimestamp is a field value the backend replaces with its own write time.
const ServerTimestamp sentinel = "statebridge.server_timestamp"

// Snapshot is a point-in-time view of one document.
type Snapshot struct {
	Collection string
	Key        string
	Exists     bool
	Data       map[string]any
	UpdateTime time.Time
}

// DocumentStore is a document-oriented store with per-document listeners.
type DocumentStore interface {
	// MergeSet writes data into the document, keeping fields not present in
	// data and overwriting the ones that are. Nested maps merge recursively.
	MergeSet(ctx context.Context, collection, key string, data map[string]any) error

	// Get returns the current snapshot. A missing document is not an error;
	// the snapshot reports Exists == false.
	Get(ctx context.Context, collection, key string) (Snapshot, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, key string) error

	// Listen registers a listener on one document. The first Next returns the
	// state at registration time; later calls return each subsequent change.
	// The listener ends when ctx is canceled, Stop is called, or the store closes.
	Listen(ctx context.Context, collection, key string) (Listener, error)

	// Close releases the store and stops all of its listeners.
	Close() error
}

// Listener yields document snapshots in the order the store observed them.
type Listener interface {
	// Next blocks until the next snapshot is available. It returns
	// ErrListenerStopped after the listener ends normally.
	Next() (Snapshot, error)

	// Stop ends the listener. It is safe to call more than once and from
	// another goroutine than the one blocked in Next.
	Stop()
}

// mergeInto merges src into dst following merge-set rules: maps merge
// recursively, every other value overwrites. ServerTimestamp values become now.
func mergeInto(dst, src map[string]any, now time.Time) {
	for k, v := range src {
		if srcMap, ok := v.(map[string]any); ok {
			if dstMap, ok := dst[k].(map[string]any); ok {
				mergeInto(dstMap, srcMap, now)
				continue
			}
			nested := make(map[string]any, len(srcMap))
			mergeInto(nested, srcMap, now)
			dst[k] = nested
			continue
		}
		if v == ServerTimestamp {
			dst[k] = now
			continue
		}
		dst[k] = cloneValue(v)
	}
}

// cloneMap deep-copies a document so callers never share maps with a store.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
