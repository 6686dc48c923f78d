package shm

import (
	"context"
	"fmt"
	"unsafe"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/shmring/internal/shm"
)

// Segment is a named, OS-backed region of memory mapped shared into this
// process. Its size is fixed at creation and the mapping stays valid until
// Close. The process that created the backing object owns it and unlinks the
// name on teardown; processes that merely opened it leave the object alone.
type Segment struct {
	region *internalshm.MappedRegion
	owner  bool
	closed bool
}

type segmentConfig struct {
	meter  metric.Meter
	tracer trace.Tracer
}

// SegmentOption configures observability for segment lifecycle operations.
type SegmentOption func(*segmentConfig)

// WithMeter records segment lifecycle counters on the given meter.
func WithMeter(m metric.Meter) SegmentOption {
	return func(c *segmentConfig) { c.meter = m }
}

// WithTracer wraps segment creation and opening in spans.
func WithTracer(t trace.Tracer) SegmentOption {
	return func(c *segmentConfig) { c.tracer = t }
}

func (c *segmentConfig) span(ctx context.Context, name string) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, nil
	}
	return c.tracer.Start(ctx, name)
}

func (c *segmentConfig) count(ctx context.Context, name string) {
	if c.meter == nil {
		return
	}
	counter, err := c.meter.Int64Counter(name)
	if err != nil {
		internalLogger.warnf("segment meter %s unavailable: %v", name, err)
		return
	}
	counter.Add(ctx, 1)
}

// Create makes (or truncates) the named shared memory object, sizes it to
// size bytes and maps it read/write and shared. The returned handle owns the
// object: its Close unlinks the name.
func Create(ctx context.Context, name string, size int, opts ...SegmentOption) (*Segment, error) {
	if !is64Bit {
		return nil, ErrPlatformNotSupported
	}
	var cfg segmentConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, span := cfg.span(ctx, "shm.segment.create")
	if span != nil {
		defer span.End()
	}

	region, err := internalshm.Map(internalshm.MapOptions{Name: name, Size: size, Create: true})
	if err != nil {
		return nil, fmt.Errorf("create segment %q: %w", name, err)
	}
	cfg.count(ctx, "shmring.segments.created")
	return &Segment{region: region, owner: true}, nil
}

// Open maps an existing shared memory object read/write and shared,
// inferring the size from the object itself. The returned handle does not
// own the object and its Close leaves the name resolvable.
func Open(ctx context.Context, name string, opts ...SegmentOption) (*Segment, error) {
	if !is64Bit {
		return nil, ErrPlatformNotSupported
	}
	var cfg segmentConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, span := cfg.span(ctx, "shm.segment.open")
	if span != nil {
		defer span.End()
	}

	region, err := internalshm.Map(internalshm.MapOptions{Name: name})
	if err != nil {
		return nil, fmt.Errorf("open segment %q: %w", name, err)
	}
	cfg.count(ctx, "shmring.segments.opened")
	return &Segment{region: region}, nil
}

// Name returns the segment's identifier in the shared memory namespace.
func (s *Segment) Name() string { return s.region.Name }

// Size returns the fixed byte size of the mapping.
func (s *Segment) Size() int { return s.region.Size }

// Owned reports whether this handle created the backing object and will
// unlink it on Close.
func (s *Segment) Owned() bool { return s.owner }

// SetOwner overrides ownership, transferring (or renouncing) the duty to
// unlink the name on Close.
func (s *Segment) SetOwner(owner bool) { s.owner = owner }

// Base returns the mapping's base address for layout arithmetic. Callers
// must stay within Size bytes; the segment does not interpret its contents.
func (s *Segment) Base() unsafe.Pointer {
	if s.region.Addr == nil {
		return nil
	}
	return unsafe.Pointer(&s.region.Addr[0])
}

// Bytes returns the whole mapping.
func (s *Segment) Bytes() []byte { return s.region.Addr }

// Close tears the segment down: unmap always, unlink only if owner, close
// the descriptor always. Each step is attempted independently and failures
// are reported to the internal logger and the event trail, never returned:
// teardown runs during cleanup where there is no recovery action. Close is
// idempotent.
func (s *Segment) Close() {
	if s.closed {
		return
	}
	s.closed = true

	name := s.region.Name
	if err := internalshm.Unmap(s.region); err != nil {
		internalLogger.errorf("segment %q unmap failed: %v", name, err)
		recordEvent(EventUnmapFailed, name, err)
	}
	if s.owner {
		if err := internalshm.Unlink(name); err != nil {
			internalLogger.errorf("segment %q unlink failed: %v", name, err)
			recordEvent(EventUnlinkFailed, name, err)
		}
	}
	if err := internalshm.CloseFd(s.region.Fd); err != nil {
		internalLogger.errorf("segment %q close fd %d failed: %v", name, s.region.Fd, err)
		recordEvent(EventCloseFailed, name, err)
	}
}
