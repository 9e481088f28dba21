package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process DocumentStore. Writes are visible to
// listeners in the order they were applied.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[docKey]memoryDoc
	hub    *hub
	now    func() time.Time
	closed bool
}

type memoryDoc struct {
	data       map[string]any
	updateTime time.Time
}

var _ DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[docKey]memoryDoc),
		hub:  newHub(),
		now:  time.Now,
	}
}

// SetClock replaces the clock used for update times and ServerTimestamp.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) MergeSet(ctx context.Context, collection, key string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	k := docKey{collection, key}
	now := s.now().UTC()
	doc := s.docs[k]
	if doc.data == nil {
		doc.data = make(map[string]any, len(data))
	}
	mergeInto(doc.data, data, now)
	doc.updateTime = now
	s.docs[k] = doc

	s.hub.publish(doc.snapshot(collection, key))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, ErrClosed
	}
	return s.snapshotLocked(collection, key), nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	k := docKey{collection, key}
	if _, ok := s.docs[k]; !ok {
		return nil
	}
	delete(s.docs, k)

	s.hub.publish(Snapshot{
		Collection: collection,
		Key:        key,
		UpdateTime: s.now().UTC(),
	})
	return nil
}

func (s *MemoryStore) Listen(ctx context.Context, collection, key string) (Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.hub.watch(ctx, s.snapshotLocked(collection, key))
}

// Close stops every listener. Later calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.close()
	return nil
}

// ListenerCount returns the number of active listeners.
func (s *MemoryStore) ListenerCount() int {
	return s.hub.count()
}

func (s *MemoryStore) snapshotLocked(collection, key string) Snapshot {
	doc, ok := s.docs[docKey{collection, key}]
	if !ok {
		return Snapshot{Collection: collection, Key: key}
	}
	return doc.snapshot(collection, key)
}

func (d memoryDoc) snapshot(collection, key string) Snapshot {
	return Snapshot{
		Collection: collection,
		Key:        key,
		Exists:     true,
		Data:       cloneMap(d.data),
		UpdateTime: d.updateTime,
	}
}
