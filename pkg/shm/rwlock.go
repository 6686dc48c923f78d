package shm

import (
	"math"
	"sync/atomic"
	"unsafe"

	internalshm "github.com/srediag/shmring/internal/shm"
)

// rwState is the control block of a process-shared read/write lock. It
// lives inside the segment, so its layout is part of the cross-process
// protocol: a single 32-bit state word (writer bit plus reader count) padded
// to the pointer width. Blocked acquirers sleep on the word itself with
// plain futexes, which work across processes because the word is in a
// MAP_SHARED mapping.
type rwState struct {
	state uint32
	_     uint32
}

const (
	rwCtrlSize  = int(unsafe.Sizeof(rwState{}))
	rwWriterBit = uint32(1) << 31
)

// RWLock is a read/write lock whose control state and payload both live at
// computed offsets inside a shared segment. Any number of processes may
// attach to the same address; exactly one of them must have initialized it
// with NewRWLock first.
//
// The payload type T must be a fixed-size value without Go pointers: it is
// stored as raw bytes in memory other processes interpret.
type RWLock[T any] struct {
	ctrl *rwState
	data *T
}

// NewRWLock initializes a process-shared read/write lock at p (after
// aligning to the native pointer width) and writes initial immediately
// after the control block. It returns the handle and the total byte span
// consumed (padding + control block + payload), so a caller laying out
// several structures can advance its cursor past it.
func NewRWLock[T any](p unsafe.Pointer, initial T) (*RWLock[T], int, error) {
	lk, span, err := layoutRWLock[T](p)
	if err != nil {
		return nil, 0, osErr(ErrRWLockInit, err)
	}
	atomic.StoreUint32(&lk.ctrl.state, 0)
	*lk.data = initial
	return lk, span, nil
}

// AttachRWLock reuses an already-initialized lock at p: the same offset
// arithmetic as NewRWLock, with no writes. The validity check is
// deliberately minimal, a nil address is the only rejected input; callers
// attach through a ring header whose magic word vouches for the region.
func AttachRWLock[T any](p unsafe.Pointer) (*RWLock[T], int, error) {
	return layoutRWLock[T](p)
}

func layoutRWLock[T any](p unsafe.Pointer) (*RWLock[T], int, error) {
	if p == nil {
		return nil, 0, ErrInvalidPointer
	}
	if !is64Bit {
		return nil, 0, ErrPlatformNotSupported
	}
	ap, pad := alignPtr(p)
	lk := &RWLock[T]{
		ctrl: (*rwState)(ap),
		data: (*T)(unsafe.Add(ap, rwCtrlSize)),
	}
	return lk, pad + rwCtrlSize + sizeOf[T](), nil
}

// Read blocks until a shared lock is acquired and returns a guard
// dereferencing to the payload. Any number of readers across any number of
// processes may hold it as long as no writer does.
func (l *RWLock[T]) Read() (*ReadGuard[T], error) {
	for {
		s := atomic.LoadUint32(&l.ctrl.state)
		if s&rwWriterBit == 0 {
			if atomic.CompareAndSwapUint32(&l.ctrl.state, s, s+1) {
				return &ReadGuard[T]{lock: l}, nil
			}
			continue
		}
		if err := internalshm.FutexWait(&l.ctrl.state, s); err != nil {
			return nil, osErr(ErrReadLock, err)
		}
	}
}

// TryRead acquires a shared lock or fails immediately if a writer holds the
// lock.
func (l *RWLock[T]) TryRead() (*ReadGuard[T], error) {
	for {
		s := atomic.LoadUint32(&l.ctrl.state)
		if s&rwWriterBit != 0 {
			return nil, osErr(ErrTryReadLock, errBusy)
		}
		if atomic.CompareAndSwapUint32(&l.ctrl.state, s, s+1) {
			return &ReadGuard[T]{lock: l}, nil
		}
	}
}

// Write blocks until the exclusive lock is acquired (no concurrent readers
// or writers) and returns a guard with mutable access to the payload.
func (l *RWLock[T]) Write() (*WriteGuard[T], error) {
	for {
		if atomic.CompareAndSwapUint32(&l.ctrl.state, 0, rwWriterBit) {
			return &WriteGuard[T]{lock: l}, nil
		}
		s := atomic.LoadUint32(&l.ctrl.state)
		if s == 0 {
			continue
		}
		if err := internalshm.FutexWait(&l.ctrl.state, s); err != nil {
			return nil, osErr(ErrWriteLock, err)
		}
	}
}

// TryWrite acquires the exclusive lock or fails immediately if the lock is
// held in any mode.
func (l *RWLock[T]) TryWrite() (*WriteGuard[T], error) {
	if atomic.CompareAndSwapUint32(&l.ctrl.state, 0, rwWriterBit) {
		return &WriteGuard[T]{lock: l}, nil
	}
	return nil, osErr(ErrTryWriteLock, errBusy)
}

// ReadGuard scopes one shared acquisition. Release it exactly once, usually
// with defer.
type ReadGuard[T any] struct {
	lock     *RWLock[T]
	released bool
}

// Value returns the payload. The pointer must not be retained past Release.
func (g *ReadGuard[T]) Value() *T { return g.lock.data }

// Release drops the shared lock. It is a no-op after the first call.
func (g *ReadGuard[T]) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	if atomic.AddUint32(&g.lock.ctrl.state, ^uint32(0)) == 0 {
		// Last reader out; a writer may be sleeping on the word.
		if err := internalshm.FutexWake(&g.lock.ctrl.state, 1); err != nil {
			return osErr(ErrReadUnlock, err)
		}
	}
	return nil
}

// WriteGuard scopes the exclusive acquisition. Release it exactly once,
// usually with defer.
type WriteGuard[T any] struct {
	lock     *RWLock[T]
	released bool
}

// Value returns mutable access to the payload. The pointer must not be
// retained past Release.
func (g *WriteGuard[T]) Value() *T { return g.lock.data }

// Release drops the exclusive lock and wakes all waiters, so sleeping
// readers are not left behind a writer that never returns.
func (g *WriteGuard[T]) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	atomic.StoreUint32(&g.lock.ctrl.state, 0)
	if err := internalshm.FutexWake(&g.lock.ctrl.state, math.MaxInt32); err != nil {
		return osErr(ErrWriteUnlock, err)
	}
	return nil
}
