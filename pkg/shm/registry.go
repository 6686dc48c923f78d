package shm

import (
	"context"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type registryEntry struct {
	seg  *Segment
	refs int
}

// Registry shares mapped segments between components of one process, so a
// name is mapped exactly once no matter how many rings or locks are built
// over it. Lookups are lock-free; open/close transitions serialize on a
// mutex.
type Registry struct {
	mu      sync.Mutex
	entries cmap.ConcurrentMap[string, *registryEntry]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: cmap.New[*registryEntry]()}
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

// Acquire returns the shared mapping for name, mapping it on first use.
// When create is set and the name is not yet held, the segment is created
// with the given size and owned by the registry; otherwise an existing
// object is opened. Every Acquire must be paired with a Release.
func (r *Registry) Acquire(ctx context.Context, name string, size int, create bool, opts ...SegmentOption) (*Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries.Get(name); ok {
		e.refs++
		return e.seg, nil
	}

	var (
		seg *Segment
		err error
	)
	if create {
		seg, err = Create(ctx, name, size, opts...)
	} else {
		seg, err = Open(ctx, name, opts...)
	}
	if err != nil {
		return nil, err
	}
	r.entries.Set(name, &registryEntry{seg: seg, refs: 1})
	return seg, nil
}

// Get returns the held mapping for name without touching its refcount.
func (r *Registry) Get(name string) (*Segment, bool) {
	e, ok := r.entries.Get(name)
	if !ok {
		return nil, false
	}
	return e.seg, true
}

// Release drops one reference to name, closing the segment when the last
// reference goes.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries.Get(name)
	if !ok {
		internalLogger.warnf("release of segment %q which the registry does not hold", name)
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	r.entries.Remove(name)
	e.seg.Close()
}
