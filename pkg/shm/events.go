package shm

import (
	"time"

	"github.com/Workiva/go-datastructures/queue"
)

// EventKind classifies an operational incident.
type EventKind int

const (
	// EventUnmapFailed records a munmap failure during segment teardown.
	EventUnmapFailed EventKind = iota
	// EventUnlinkFailed records an owner's failure to unlink the name.
	EventUnlinkFailed
	// EventCloseFailed records a descriptor close failure.
	EventCloseFailed
)

func (k EventKind) String() string {
	switch k {
	case EventUnmapFailed:
		return "unmap-failed"
	case EventUnlinkFailed:
		return "unlink-failed"
	case EventCloseFailed:
		return "close-failed"
	default:
		return "unknown"
	}
}

// Event is one recorded operational incident. Teardown never propagates
// errors; the trail keeps them observable to the operator.
type Event struct {
	Kind    EventKind
	Segment string
	Err     error
	At      time.Time
}

const eventTrailCapacity = 128

// The trail is bounded: once full, new events are dropped rather than
// blocking a teardown path.
var eventTrail = queue.NewRingBuffer(eventTrailCapacity)

func recordEvent(kind EventKind, segment string, err error) {
	ok, offerErr := eventTrail.Offer(Event{Kind: kind, Segment: segment, Err: err, At: time.Now()})
	if offerErr != nil || !ok {
		internalLogger.debugf("event trail full, dropped %v for segment %q", kind, segment)
	}
}

// DrainEvents removes and returns the recorded operational events, oldest
// first. Concurrent drains split the events between them.
func DrainEvents() []Event {
	out := make([]Event, 0, eventTrail.Len())
	for eventTrail.Len() > 0 {
		v, err := eventTrail.Poll(time.Millisecond)
		if err != nil {
			break
		}
		ev, ok := v.(Event)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}
