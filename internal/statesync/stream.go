package statesync

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	"github.com/Iron-Ham/statebridge/internal/errors"
	"github.com/Iron-Ham/statebridge/internal/event"
	"github.com/Iron-Ham/statebridge/internal/logging"
	"github.com/Iron-Ham/statebridge/internal/store"
	"github.com/google/uuid"
)

// Handler receives the current contents of a document.
type Handler func(doc map[string]any)

// Subscription is a live listener on one document. It stays active until
// Cancel is called or the Manager is closed.
type Subscription struct {
	ID         string
	Collection string
	Key        string

	listener store.Listener
	cancel   context.CancelFunc
	handler  Handler
	logger   *logging.Logger
	bus      *event.Bus
	onEnd    func(id string)

	canceled  atomic.Bool
	delivered int
	done      chan struct{}
	err       error
}

// StreamUpdates registers handler on the document key. It returns once the
// listener is established; registration failures are returned here. The
// handler is then called on the subscription's goroutine for the current
// document and every later change, in store order. Changes that leave the
// document missing are not delivered.
//
// ctx bounds registration only. The subscription outlives it.
func (m *Manager) StreamUpdates(ctx context.Context, key string, handler Handler, opts ...WriteOption) (*Subscription, error) {
	if key == "" {
		return nil, errors.NewValidationError("key cannot be empty").WithField("key").WithValue(key)
	}
	if handler == nil {
		return nil, errors.NewValidationError("handler cannot be nil").WithField("handler")
	}

	collection := m.collection(opts)
	if collection == "" {
		return nil, errors.NewValidationError("collection cannot be empty").WithField("collection")
	}

	st, err := m.Store(ctx)
	if err != nil {
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	listener, err := st.Listen(listenCtx, collection, key)
	if err != nil {
		cancel()
		return nil, m.listenError(collection, key, err)
	}

	// The first snapshot confirms the listener is live.
	stopWatch := context.AfterFunc(ctx, listener.Stop)
	first, err := listener.Next()
	if !stopWatch() {
		err = ctx.Err()
	}
	if err != nil {
		listener.Stop()
		cancel()
		return nil, m.listenError(collection, key, err)
	}

	id := uuid.NewString()
	sub := &Subscription{
		ID:         id,
		Collection: collection,
		Key:        key,
		listener:   listener,
		cancel:     cancel,
		handler:    handler,
		logger:     m.logger.WithCollection(collection).WithKey(key).WithSubscription(id),
		bus:        m.bus,
		onEnd:      m.untrackSubscription,
		done:       make(chan struct{}),
	}
	m.trackSubscription(sub)

	sub.logger.Info("subscription started")
	m.bus.Publish(event.NewSubscriptionStartedEvent(id, collection, key))

	go sub.run(first)
	return sub, nil
}

func (m *Manager) listenError(collection, key string, err error) error {
	m.logger.WithCollection(collection).WithKey(key).Error("listener registration failed", "error", err)
	return errors.NewStoreOperationError("listen", err).
		WithDocument(collection, key).
		WithRetryable(isTransient(err))
}

// Cancel stops future handler calls. A call already in progress is not
// interrupted. Cancel is safe to call more than once.
func (s *Subscription) Cancel() {
	if !s.canceled.CompareAndSwap(false, true) {
		return
	}
	s.listener.Stop()
	s.cancel()
}

// Done is closed when the subscription's goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the subscription. It is nil while the
// subscription is running and after a Cancel or Manager.Close.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Subscription) run(snap store.Snapshot) {
	defer func() {
		s.cancel()
		s.onEnd(s.ID)
		s.logger.Info("subscription ended", "delivered", s.delivered)
		s.bus.Publish(event.NewSubscriptionEndedEvent(s.ID, s.Collection, s.Key, s.delivered, s.err))
		close(s.done)
	}()

	for {
		if s.canceled.Load() {
			return
		}
		if snap.Exists {
			s.deliver(snap.Data)
		} else {
			s.logger.Debug("document missing, skipping snapshot")
		}

		var err error
		snap, err = s.listener.Next()
		if err != nil {
			if errors.Is(err, store.ErrListenerStopped) || s.canceled.Load() {
				return
			}
			s.logger.Error("listener failed", "error", err)
			s.err = errors.NewStoreOperationError("listen", err).
				WithDocument(s.Collection, s.Key).
				WithRetryable(isTransient(err))
			return
		}
	}
}

func (s *Subscription) deliver(doc map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscription handler panicked",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	if doc == nil {
		doc = map[string]any{}
	}
	s.handler(doc)
	s.delivered++
}
