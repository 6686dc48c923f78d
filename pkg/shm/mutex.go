package shm

import (
	"errors"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	internalshm "github.com/srediag/shmring/internal/shm"
)

// mutexState is the control block of a process-shared mutex: one 32-bit
// word padded to the pointer width. 0 is free, 1 is locked, 2 is locked
// with waiters sleeping on the word.
type mutexState struct {
	state uint32
	_     uint32
}

const mutexCtrlSize = int(unsafe.Sizeof(mutexState{}))

const (
	mutexFree = iota
	mutexLocked
	mutexContended
)

// Mutex is a mutual exclusion lock whose control state and payload live
// inside a shared segment. Unlike the read/write lock it offers a bounded
// wait, LockTimeout. The ring buffer does not use it; it exists for callers
// guarding a single in-segment value.
type Mutex[T any] struct {
	ctrl *mutexState
	data *T
}

// NewMutex initializes a process-shared mutex at p (after pointer-width
// alignment) and writes initial after the control block, returning the
// handle and the byte span consumed.
func NewMutex[T any](p unsafe.Pointer, initial T) (*Mutex[T], int, error) {
	m, span, err := layoutMutex[T](p)
	if err != nil {
		return nil, 0, osErr(ErrMutexInit, err)
	}
	atomic.StoreUint32(&m.ctrl.state, mutexFree)
	*m.data = initial
	return m, span, nil
}

// AttachMutex reuses an already-initialized mutex at p without writing
// anything.
func AttachMutex[T any](p unsafe.Pointer) (*Mutex[T], int, error) {
	return layoutMutex[T](p)
}

func layoutMutex[T any](p unsafe.Pointer) (*Mutex[T], int, error) {
	if p == nil {
		return nil, 0, ErrInvalidPointer
	}
	if !is64Bit {
		return nil, 0, ErrPlatformNotSupported
	}
	ap, pad := alignPtr(p)
	m := &Mutex[T]{
		ctrl: (*mutexState)(ap),
		data: (*T)(unsafe.Add(ap, mutexCtrlSize)),
	}
	return m, pad + mutexCtrlSize + sizeOf[T](), nil
}

// Lock blocks until the mutex is acquired.
func (m *Mutex[T]) Lock() (*MutexGuard[T], error) {
	if atomic.CompareAndSwapUint32(&m.ctrl.state, mutexFree, mutexLocked) {
		return &MutexGuard[T]{mutex: m}, nil
	}
	for {
		// Advertise a waiter before sleeping so the unlocker knows to wake.
		if atomic.LoadUint32(&m.ctrl.state) == mutexContended ||
			atomic.CompareAndSwapUint32(&m.ctrl.state, mutexLocked, mutexContended) {
			if err := internalshm.FutexWait(&m.ctrl.state, mutexContended); err != nil {
				return nil, osErr(ErrMutexLock, err)
			}
		}
		if atomic.CompareAndSwapUint32(&m.ctrl.state, mutexFree, mutexContended) {
			return &MutexGuard[T]{mutex: m}, nil
		}
	}
}

// TryLock acquires the mutex or fails immediately.
func (m *Mutex[T]) TryLock() (*MutexGuard[T], error) {
	if atomic.CompareAndSwapUint32(&m.ctrl.state, mutexFree, mutexLocked) {
		return &MutexGuard[T]{mutex: m}, nil
	}
	return nil, osErr(ErrMutexTryLock, errBusy)
}

// LockTimeout is Lock with a bounded wait. It fails with ErrMutexTimeout
// once d has elapsed without an acquisition.
func (m *Mutex[T]) LockTimeout(d time.Duration) (*MutexGuard[T], error) {
	if atomic.CompareAndSwapUint32(&m.ctrl.state, mutexFree, mutexLocked) {
		return &MutexGuard[T]{mutex: m}, nil
	}
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, osErr(ErrMutexTimeout, syscall.ETIMEDOUT)
		}
		if atomic.LoadUint32(&m.ctrl.state) == mutexContended ||
			atomic.CompareAndSwapUint32(&m.ctrl.state, mutexLocked, mutexContended) {
			err := internalshm.FutexWaitTimeout(&m.ctrl.state, mutexContended, remaining)
			if errors.Is(err, syscall.ETIMEDOUT) {
				return nil, osErr(ErrMutexTimeout, err)
			}
			if err != nil {
				return nil, osErr(ErrMutexLock, err)
			}
		}
		if atomic.CompareAndSwapUint32(&m.ctrl.state, mutexFree, mutexContended) {
			return &MutexGuard[T]{mutex: m}, nil
		}
	}
}

// MutexGuard scopes one acquisition. Release it exactly once, usually with
// defer.
type MutexGuard[T any] struct {
	mutex    *Mutex[T]
	released bool
}

// Value returns mutable access to the payload. The pointer must not be
// retained past Release.
func (g *MutexGuard[T]) Value() *T { return g.mutex.data }

// Release unlocks the mutex, waking one waiter if any advertised itself.
func (g *MutexGuard[T]) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	if atomic.SwapUint32(&g.mutex.ctrl.state, mutexFree) == mutexContended {
		if err := internalshm.FutexWake(&g.mutex.ctrl.state, 1); err != nil {
			return osErr(ErrMutexUnlock, err)
		}
	}
	return nil
}
