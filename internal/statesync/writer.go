package statesync

import (
	"context"
	"slices"
	"time"

	"github.com/Iron-Ham/statebridge/internal/errors"
	"github.com/Iron-Ham/statebridge/internal/event"
	"github.com/Iron-Ham/statebridge/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Enrichment field names stamped on every write.
const (
	FieldTimestamp = "timestamp"
	FieldSymbol    = "symbol"
	FieldUpdatedAt = "updated_at"
	FieldSource    = "source"
)

// UpdateState merges payload into the document key of the target collection.
// Fields absent from payload keep their stored values. The enrichment fields
// are rewritten on every call.
func (m *Manager) UpdateState(ctx context.Context, key string, payload map[string]any, opts ...WriteOption) error {
	if key == "" {
		return errors.NewValidationError("key cannot be empty").WithField("key").WithValue(key)
	}
	if payload == nil {
		return errors.NewValidationError("payload must be a mapping").WithField("payload")
	}

	collection := m.collection(opts)
	if collection == "" {
		return errors.NewValidationError("collection cannot be empty").WithField("collection")
	}

	st, err := m.Store(ctx)
	if err != nil {
		return err
	}

	doc := m.enrich(key, payload)
	logger := m.logger.WithCollection(collection).WithKey(key)

	if err := st.MergeSet(ctx, collection, key, doc); err != nil {
		logger.Error("state update failed", "error", err)
		return errors.NewStoreOperationError("merge-set", err).
			WithDocument(collection, key).
			WithRetryable(isTransient(err))
	}

	fields := make([]string, 0, len(payload))
	for k := range payload {
		fields = append(fields, k)
	}
	slices.Sort(fields)

	logger.Debug("state updated", "fields", len(fields))
	m.bus.Publish(event.NewStateUpdatedEvent(collection, key, fields))
	return nil
}

// enrich copies payload and adds the enrichment fields on top.
func (m *Manager) enrich(key string, payload map[string]any) map[string]any {
	doc := make(map[string]any, len(payload)+4)
	for k, v := range payload {
		doc[k] = v
	}
	doc[FieldTimestamp] = store.ServerTimestamp
	doc[FieldSymbol] = key
	doc[FieldUpdatedAt] = m.now().UTC().Format(time.RFC3339Nano)
	doc[FieldSource] = m.cfg.State.Source
	return doc
}

func (m *Manager) collection(opts []WriteOption) string {
	o := writeOptions{collection: m.cfg.State.Collection}
	for _, opt := range opts {
		opt(&o)
	}
	return o.collection
}

// isTransient reports whether a store error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
