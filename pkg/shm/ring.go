package shm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
)

// ringMagic marks an initialized ring header. The initializer publishes it
// last, with release ordering, so an attacher that observes it can trust the
// capacity field and every slot's control block. The low byte carries the
// layout version.
const ringMagic uint64 = 0x53484d52494e4700 | 1 // "SHMRING" + version

// ringHeader sits at the start of the segment, after pointer-width
// alignment. capacity is write-once at initialization; writeSeq is the
// shared, atomically incremented write-sequence counter establishing a total
// order over writes from all processes.
type ringHeader struct {
	magic    uint64
	capacity uint64
	writeSeq uint64
}

const ringHeaderSize = int(unsafe.Sizeof(ringHeader{}))

// ReadPolicy controls where a consumer's private cursor starts and how far
// it may advance per call. The zero value is the legacy behavior: jump to
// the latest value on the first read, then advance by exactly one.
type ReadPolicy struct {
	// FromOldest starts the cursor at the oldest value the ring still
	// holds instead of jumping to the latest one.
	FromOldest bool
	// CatchUp lets a read advance the cursor by up to this many sequence
	// steps at once when the consumer has fallen behind, returning the
	// value at the new cursor. Zero or one keeps the one-step behavior.
	// Values skipped by a multi-step advance are never returned.
	CatchUp uint64
}

type ringConfig struct {
	policy  ReadPolicy
	metrics *Metrics
}

// RingOption configures a ring handle. Options are process-local: nothing
// about them is stored in the segment.
type RingOption func(*ringConfig)

// WithReadPolicy sets this handle's consumer cursor policy.
func WithReadPolicy(p ReadPolicy) RingOption {
	return func(c *ringConfig) { c.policy = p }
}

// WithMetrics records ring traffic on the given collectors.
func WithMetrics(m *Metrics) RingOption {
	return func(c *ringConfig) { c.metrics = m }
}

// Ring is a multi-producer/multi-consumer ring buffer of lock-guarded slots
// laid out contiguously inside a shared segment. Writers are ordered by the
// shared write-sequence counter and serialized per slot by that slot's
// exclusive lock; a slow writer can be overtaken and overwritten before any
// reader sees its value. The ring keeps the latest values visible, it is not
// a queue with per-item delivery.
//
// The read cursor is private to this handle and never stored in shared
// memory; a Ring must not be shared between goroutines that both call Read.
type Ring[T any] struct {
	slots   []*RWLock[T]
	header  *ringHeader
	cursor  uint64
	policy  ReadPolicy
	metrics *Metrics
}

// NewRing lays a ring of capacity lock/payload slots over seg: header first
// (magic published last), then the slots back-to-back, each seeded with T's
// zero value. The layout is written exactly once, by the segment owner. If
// seg was opened rather than created, the call defers to AttachRing and
// capacity must match what the owner wrote.
func NewRing[T any](seg *Segment, capacity int, opts ...RingOption) (*Ring[T], error) {
	if !seg.Owned() {
		return AttachRing[T](seg, opts...)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be positive, got %d", capacity)
	}
	if need := RingSize[T](capacity); need > seg.Size() {
		return nil, fmt.Errorf("segment %q too small for capacity %d: need %d bytes, have %d",
			seg.Name(), capacity, need, seg.Size())
	}

	var cfg ringConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	base, _ := alignPtr(seg.Base())
	hdr := (*ringHeader)(base)
	hdr.capacity = uint64(capacity)
	atomic.StoreUint64(&hdr.writeSeq, 0)

	slots := make([]*RWLock[T], 0, capacity)
	p := unsafe.Add(base, ringHeaderSize)
	var zero T
	for i := 0; i < capacity; i++ {
		lk, span, err := NewRWLock[T](p, zero)
		if err != nil {
			return nil, fmt.Errorf("initialize slot %d: %w", i, err)
		}
		slots = append(slots, lk)
		p = unsafe.Add(p, span)
	}

	atomic.StoreUint64(&hdr.magic, ringMagic)
	return &Ring[T]{slots: slots, header: hdr, policy: cfg.policy, metrics: cfg.metrics}, nil
}

// AttachRing reconstructs a ring another process initialized inside seg,
// reading the capacity back out of the header and running the identical slot
// arithmetic with no writes. It fails with ErrNotInitialized while the
// owner's magic word is absent and with ErrInvalidPointer on a null base or
// a zero capacity.
func AttachRing[T any](seg *Segment, opts ...RingOption) (*Ring[T], error) {
	var cfg ringConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if seg.Base() == nil {
		return nil, ErrInvalidPointer
	}
	base, _ := alignPtr(seg.Base())
	hdr := (*ringHeader)(base)
	if atomic.LoadUint64(&hdr.magic) != ringMagic {
		return nil, ErrNotInitialized
	}
	capacity := hdr.capacity
	if capacity == 0 {
		return nil, ErrInvalidPointer
	}

	slots := make([]*RWLock[T], 0, capacity)
	p := unsafe.Add(base, ringHeaderSize)
	for i := uint64(0); i < capacity; i++ {
		lk, span, err := AttachRWLock[T](p)
		if err != nil {
			return nil, fmt.Errorf("attach slot %d: %w", i, err)
		}
		slots = append(slots, lk)
		p = unsafe.Add(p, span)
	}
	return &Ring[T]{slots: slots, header: hdr, policy: cfg.policy, metrics: cfg.metrics}, nil
}

// AttachRingRetry attaches to a ring a producer may still be initializing,
// retrying ErrNotInitialized under the given backoff policy until it
// succeeds, the policy gives up, or ctx is done. Any other attach failure is
// permanent.
func AttachRingRetry[T any](ctx context.Context, seg *Segment, bo backoff.BackOff, opts ...RingOption) (*Ring[T], error) {
	var ring *Ring[T]
	operation := func() error {
		r, err := AttachRing[T](seg, opts...)
		if err != nil {
			if errors.Is(err, ErrNotInitialized) {
				return err
			}
			return backoff.Permanent(err)
		}
		ring = r
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return ring, nil
}

// Capacity returns the slot count recorded in the segment header.
func (r *Ring[T]) Capacity() int { return int(r.header.capacity) }

// Sequence returns the current value of the shared write-sequence counter,
// which equals the number of writes performed over the segment's lifetime.
func (r *Ring[T]) Sequence() uint64 {
	return atomic.LoadUint64(&r.header.writeSeq)
}

// Write claims the next sequence number with a single atomic increment,
// exclusively locks slot (sequence mod capacity) and overwrites its payload.
// Writers whose sequence numbers collide modulo capacity serialize on the
// slot lock; everyone else proceeds independently.
func (r *Ring[T]) Write(value T) error {
	seq := atomic.AddUint64(&r.header.writeSeq, 1)
	idx := (seq - 1) % r.header.capacity
	guard, err := r.slots[idx].Write()
	if err != nil {
		return err
	}
	*guard.Value() = value
	if err := guard.Release(); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.Writes.Inc()
	}
	return nil
}

// Read returns the value at this handle's private cursor, advancing it per
// the handle's ReadPolicy. With the default policy the first call jumps to
// the current write sequence and returns the latest value, skipping
// everything written before the consumer started; every later call advances
// by exactly one if the shared sequence has moved, else fails with ErrEmpty.
// The slot consulted is always (cursor-1) mod capacity. A ring that has
// never been written to reports ErrEmpty.
func (r *Ring[T]) Read() (T, error) {
	var zero T
	seq := atomic.LoadUint64(&r.header.writeSeq)

	caughtUp := seq == 0 || (r.cursor != 0 && r.cursor >= seq)
	if caughtUp {
		if r.metrics != nil {
			r.metrics.EmptyReads.Inc()
		}
		return zero, ErrEmpty
	}

	if r.cursor == 0 {
		if r.policy.FromOldest {
			r.cursor = 1
			if capacity := r.header.capacity; seq > capacity {
				r.cursor = seq - capacity + 1
				r.skipped(r.cursor - 1)
			}
		} else {
			r.cursor = seq
			r.skipped(seq - 1)
		}
	} else {
		step := uint64(1)
		if r.policy.CatchUp > 1 {
			step = min(r.policy.CatchUp, seq-r.cursor)
		}
		r.cursor += step
		r.skipped(step - 1)
	}

	idx := (r.cursor - 1) % r.header.capacity
	guard, err := r.slots[idx].Read()
	if err != nil {
		return zero, err
	}
	value := *guard.Value()
	if err := guard.Release(); err != nil {
		return zero, err
	}
	if r.metrics != nil {
		r.metrics.Reads.Inc()
	}
	return value, nil
}

func (r *Ring[T]) skipped(n uint64) {
	if n > 0 && r.metrics != nil {
		r.metrics.SkippedValues.Add(float64(n))
	}
}

// Initialized reports whether seg carries a published ring header. It is
// cheaper than a full attach and safe on a freshly created segment.
func Initialized(seg *Segment) bool {
	if seg.Base() == nil {
		return false
	}
	base, _ := alignPtr(seg.Base())
	hdr := (*ringHeader)(base)
	return atomic.LoadUint64(&hdr.magic) == ringMagic
}
