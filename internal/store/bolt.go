package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore is a DocumentStore persisted in a local bbolt file. Each
// collection is a bucket and each document a CBOR record keyed by its key.
// Listeners are process-local.
type BoltStore struct {
	db  *bbolt.DB
	hub *hub
	now func() time.Time

	// mu orders commit+publish so listeners see writes in commit order.
	mu     sync.Mutex
	closed bool
}

// docRecord is the on-disk form of a document.
type docRecord struct {
	Data       map[string]any `cbor:"1,keyasint"`
	UpdateTime time.Time      `cbor:"2,keyasint"`
}

var _ DocumentStore = (*BoltStore)(nil)

// OpenBolt opens or creates the database at path, creating its directory.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &BoltStore{
		db:  db,
		hub: newHub(),
		now: time.Now,
	}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.db.Path()
}

func (s *BoltStore) MergeSet(ctx context.Context, collection, key string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var rec docRecord
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}

		if raw := b.Get([]byte(key)); raw != nil {
			if err := unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("unmarshal document: %w", err)
			}
		}
		if rec.Data == nil {
			rec.Data = make(map[string]any, len(data))
		}

		now := s.now().UTC()
		mergeInto(rec.Data, data, now)
		rec.UpdateTime = now

		encoded, err := marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		return b.Put([]byte(key), encoded)
	})
	if err != nil {
		return err
	}

	s.hub.publish(rec.snapshot(collection, key))
	return nil
}

func (s *BoltStore) Get(ctx context.Context, collection, key string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, ErrClosed
	}
	return s.readLocked(collection, key)
}

func (s *BoltStore) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var existed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil || b.Get([]byte(key)) == nil {
			return nil
		}
		existed = true
		return b.Delete([]byte(key))
	})
	if err != nil || !existed {
		return err
	}

	s.hub.publish(Snapshot{
		Collection: collection,
		Key:        key,
		UpdateTime: s.now().UTC(),
	})
	return nil
}

func (s *BoltStore) Listen(ctx context.Context, collection, key string) (Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	snap, err := s.readLocked(collection, key)
	if err != nil {
		return nil, err
	}
	return s.hub.watch(ctx, snap)
}

// Close stops every listener and closes the database file.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.close()
	return s.db.Close()
}

func (s *BoltStore) readLocked(collection, key string) (Snapshot, error) {
	var (
		rec   docRecord
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		if err := unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("unmarshal document: %w", err)
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if !found {
		return Snapshot{Collection: collection, Key: key}, nil
	}
	return rec.snapshot(collection, key), nil
}

func (r docRecord) snapshot(collection, key string) Snapshot {
	return Snapshot{
		Collection: collection,
		Key:        key,
		Exists:     true,
		Data:       cloneMap(r.Data),
		UpdateTime: r.UpdateTime,
	}
}
