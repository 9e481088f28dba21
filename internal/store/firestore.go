package store

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is a DocumentStore over a Cloud Firestore client.
type FirestoreStore struct {
	client *firestore.Client
}

var _ DocumentStore = (*FirestoreStore)(nil)

// NewFirestoreStore wraps client. The store owns the client from then on.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// DocumentID maps a state key to a Firestore document ID. Keys such as
// "BTC/USDT" would otherwise be read as a subcollection path.
func DocumentID(key string) string {
	return url.PathEscape(key)
}

func (s *FirestoreStore) doc(collection, key string) *firestore.DocumentRef {
	return s.client.Collection(collection).Doc(DocumentID(key))
}

func (s *FirestoreStore) MergeSet(ctx context.Context, collection, key string, data map[string]any) error {
	_, err := s.doc(collection, key).Set(ctx, toFirestore(data), firestore.MergeAll)
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, collection, key string) (Snapshot, error) {
	snap, err := s.doc(collection, key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Snapshot{Collection: collection, Key: key}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}
	return fromFirestore(collection, key, snap), nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.doc(collection, key).Delete(ctx)
	return err
}

func (s *FirestoreStore) Listen(ctx context.Context, collection, key string) (Listener, error) {
	ctx, cancel := context.WithCancel(ctx)
	return &firestoreListener{
		collection: collection,
		key:        key,
		iter:       s.doc(collection, key).Snapshots(ctx),
		cancel:     cancel,
	}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreListener struct {
	collection string
	key        string
	iter       *firestore.DocumentSnapshotIterator
	cancel     context.CancelFunc
	stopped    atomic.Bool
}

func (l *firestoreListener) Next() (Snapshot, error) {
	snap, err := l.iter.Next()
	if err != nil {
		return Snapshot{}, listenerError(err, l.stopped.Load())
	}
	return fromFirestore(l.collection, l.key, snap), nil
}

func (l *firestoreListener) Stop() {
	l.stopped.Store(true)
	l.cancel()
	l.iter.Stop()
}

// listenerError maps a snapshot iterator error. iterator.Done also ends the
// stream on some network failures, so it only means a clean stop after Stop.
// Cancellation always does: the listen context belongs to the caller.
func listenerError(err error, stopped bool) error {
	switch {
	case errors.Is(err, iterator.Done):
		if stopped {
			return ErrListenerStopped
		}
		return ErrListenerEnded
	case status.Code(err) == codes.Canceled, errors.Is(err, context.Canceled):
		return ErrListenerStopped
	case stopped:
		return ErrListenerStopped
	default:
		return err
	}
}

func fromFirestore(collection, key string, snap *firestore.DocumentSnapshot) Snapshot {
	if snap == nil || !snap.Exists() {
		return Snapshot{Collection: collection, Key: key}
	}
	return Snapshot{
		Collection: collection,
		Key:        key,
		Exists:     true,
		Data:       snap.Data(),
		UpdateTime: snap.UpdateTime,
	}
}

// toFirestore replaces ServerTimestamp with the client's sentinel.
func toFirestore(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch t := v.(type) {
		case map[string]any:
			out[k] = toFirestore(t)
		case sentinel:
			if t == ServerTimestamp {
				out[k] = firestore.ServerTimestamp
				continue
			}
			out[k] = string(t)
		default:
			out[k] = v
		}
	}
	return out
}
