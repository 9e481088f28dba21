package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"firebase.google.com/go/v4/db"
)

// TreeRef is a location in a realtime JSON tree.
type TreeRef interface {
	// Path returns the slash-separated location, "/" for the root.
	Path() string
	// Child returns the location path below this one.
	Child(path string) TreeRef
	// Get decodes the value at this location into v.
	Get(ctx context.Context, v any) error
	// Set replaces the value at this location.
	Set(ctx context.Context, v any) error
	// Update sets the given children, leaving the others untouched.
	Update(ctx context.Context, values map[string]any) error
}

// FirebaseTree is a TreeRef over a Firebase Realtime Database reference.
type FirebaseTree struct {
	ref *db.Ref
}

var _ TreeRef = (*FirebaseTree)(nil)

// NewFirebaseTree wraps ref.
func NewFirebaseTree(ref *db.Ref) *FirebaseTree {
	return &FirebaseTree{ref: ref}
}

func (t *FirebaseTree) Path() string {
	return t.ref.Path
}

func (t *FirebaseTree) Child(path string) TreeRef {
	return &FirebaseTree{ref: t.ref.Child(path)}
}

func (t *FirebaseTree) Get(ctx context.Context, v any) error {
	return t.ref.Get(ctx, v)
}

func (t *FirebaseTree) Set(ctx context.Context, v any) error {
	return t.ref.Set(ctx, v)
}

func (t *FirebaseTree) Update(ctx context.Context, values map[string]any) error {
	return t.ref.Update(ctx, values)
}

// MemoryTree is an in-process TreeRef. Values are stored in their JSON form,
// so Get behaves like the Firebase client: numbers decode as float64 into
// an untyped target.
type MemoryTree struct {
	root *treeRoot
	path []string
}

type treeRoot struct {
	mu   sync.Mutex
	data any
}

var _ TreeRef = (*MemoryTree)(nil)

// NewMemoryTree returns the root of an empty tree.
func NewMemoryTree() *MemoryTree {
	return &MemoryTree{root: &treeRoot{}}
}

func (t *MemoryTree) Path() string {
	return "/" + strings.Join(t.path, "/")
}

func (t *MemoryTree) Child(path string) TreeRef {
	segs := append(append([]string(nil), t.path...), splitPath(path)...)
	return &MemoryTree{root: t.root, path: segs}
}

func (t *MemoryTree) Get(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.root.mu.Lock()
	node := lookup(t.root.data, t.path)
	raw, err := json.Marshal(node)
	t.root.mu.Unlock()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (t *MemoryTree) Set(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := normalize(v)
	if err != nil {
		return err
	}

	t.root.mu.Lock()
	defer t.root.mu.Unlock()
	t.root.data = assign(t.root.data, t.path, value)
	return nil
}

func (t *MemoryTree) Update(ctx context.Context, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("values must not be empty")
	}

	normalized := make(map[string]any, len(values))
	for k, v := range values {
		value, err := normalize(v)
		if err != nil {
			return err
		}
		normalized[k] = value
	}

	t.root.mu.Lock()
	defer t.root.mu.Unlock()
	for k, v := range normalized {
		full := append(append([]string(nil), t.path...), splitPath(k)...)
		t.root.data = assign(t.root.data, full, v)
	}
	return nil
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// normalize converts v to the generic form encoding/json produces.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func lookup(node any, path []string) any {
	for _, seg := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[seg]
	}
	return node
}

// assign returns node with value stored at path. A nil value deletes.
func assign(node any, path []string, value any) any {
	if len(path) == 0 {
		return value
	}

	m, ok := node.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	child := assign(m[path[0]], path[1:], value)
	if child == nil {
		delete(m, path[0])
	} else {
		m[path[0]] = child
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
