package store

import (
	"context"
	"sync"
)

type docKey struct {
	collection string
	key        string
}

// hub fans document snapshots out to local listeners. Publishing only
// enqueues, so a store can publish while holding its own write lock and
// listeners observe changes in exactly the order they were applied.
type hub struct {
	mu       sync.Mutex
	watchers map[docKey]map[*watcher]struct{}
	closed   bool
}

func newHub() *hub {
	return &hub{watchers: make(map[docKey]map[*watcher]struct{})}
}

// watch registers a watcher whose first snapshot is initial.
func (h *hub) watch(ctx context.Context, initial Snapshot) (*watcher, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	k := docKey{initial.Collection, initial.Key}
	w := &watcher{
		hub:    h,
		doc:    k,
		queue:  []Snapshot{initial},
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if h.watchers[k] == nil {
		h.watchers[k] = make(map[*watcher]struct{})
	}
	h.watchers[k][w] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				w.Stop()
			case <-w.done:
			}
		}()
	}
	return w, nil
}

func (h *hub) publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.watchers[docKey{snap.Collection, snap.Key}] {
		own := snap
		own.Data = cloneMap(snap.Data)
		w.push(own)
	}
}

func (h *hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.watchers[w.doc]
	delete(set, w)
	if len(set) == 0 {
		delete(h.watchers, w.doc)
	}
}

// close stops every watcher and rejects new ones.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	var all []*watcher
	for _, set := range h.watchers {
		for w := range set {
			all = append(all, w)
		}
	}
	h.mu.Unlock()

	for _, w := range all {
		w.Stop()
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.watchers {
		n += len(set)
	}
	return n
}

// watcher is a Listener backed by an unbounded FIFO of snapshots.
type watcher struct {
	hub *hub
	doc docKey

	mu      sync.Mutex
	queue   []Snapshot
	stopped bool
	signal  chan struct{}
	done    chan struct{}
}

var _ Listener = (*watcher)(nil)

func (w *watcher) push(snap Snapshot) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, snap)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) Next() (Snapshot, error) {
	for {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return Snapshot{}, ErrListenerStopped
		}
		if len(w.queue) > 0 {
			snap := w.queue[0]
			w.queue[0] = Snapshot{}
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return snap, nil
		}
		w.mu.Unlock()

		select {
		case <-w.signal:
		case <-w.done:
		}
	}
}

func (w *watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.queue = nil
	close(w.done)
	w.mu.Unlock()

	w.hub.remove(w)
}
