//go:build linux

package shm

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// The addressed word lives inside a MAP_SHARED mapping, so the plain
// (process-shared) futex operations are used, never FUTEX_*_PRIVATE.

// Futex operation codes from <linux/futex.h>; x/sys/unix does not export them.
const (
	futexWait = 0
	futexWake = 1
)

// FutexWait blocks until the word at addr no longer holds val, or until a
// wake. Spurious returns are allowed: EAGAIN (value already changed) and
// EINTR report success and the caller re-checks its state.
func FutexWait(addr *uint32, val uint32) error {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), futexWait, uintptr(val), 0, 0, 0)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return nil
	default:
		return errno
	}
}

// FutexWaitTimeout is FutexWait with a relative deadline. It returns
// unix.ETIMEDOUT when the wait expires.
func FutexWaitTimeout(addr *uint32, val uint32, d time.Duration) error {
	ts := unix.NsecToTimespec(d.Nanoseconds())
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), futexWait, uintptr(val),
		uintptr(unsafe.Pointer(&ts)), 0, 0)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return nil
	default:
		return errno
	}
}

// FutexWake wakes up to n waiters blocked on the word at addr.
func FutexWake(addr *uint32, n int) error {
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), futexWake, uintptr(n), 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
