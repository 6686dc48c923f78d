package shm

import (
	"errors"
	"fmt"
	"syscall"

	internalshm "github.com/srediag/shmring/internal/shm"
)

// Every fallible lock operation reports one of these sentinels; the
// originating OS error code, when there is one, is attached by wrapping and
// retrievable through errors.As on *OSError.
var (
	ErrMutexInit    = errors.New("mutex failed to initialize")
	ErrMutexLock    = errors.New("failed to lock mutex")
	ErrMutexTryLock = errors.New("try lock mutex failed")
	ErrMutexUnlock  = errors.New("failed to unlock mutex")
	ErrMutexTimeout = errors.New("timeout while trying to lock mutex")

	ErrRWLockInit   = errors.New("rwlock failed to initialize")
	ErrReadLock     = errors.New("failed to read-lock rwlock")
	ErrTryReadLock  = errors.New("try read-lock rwlock failed")
	ErrWriteLock    = errors.New("failed to write-lock rwlock")
	ErrTryWriteLock = errors.New("try write-lock rwlock failed")
	ErrReadUnlock   = errors.New("failed to unlock read-locked rwlock")
	ErrWriteUnlock  = errors.New("failed to unlock write-locked rwlock")

	// ErrEmpty reports that a ring buffer consumer has caught up with the
	// shared write sequence and there is nothing new to read.
	ErrEmpty = errors.New("ring buffer is empty, no data to read")

	// ErrInvalidPointer reports that attaching derived a null or otherwise
	// unusable pointer from the given address.
	ErrInvalidPointer = errors.New("attach failed due to invalid pointer")

	// ErrNotInitialized reports that the ring header's magic word is
	// absent: the owner has not finished (or never ran) initialization.
	// AttachRingRetry treats it as transient.
	ErrNotInitialized = errors.New("ring buffer header is not initialized")
)

// ErrPlatformNotSupported is returned by constructors on platforms without
// POSIX shared memory and futex support.
var ErrPlatformNotSupported = internalshm.ErrPlatformNotSupported

// errBusy is the code try-lock failures carry when the lock is held
// incompatibly.
var errBusy error = syscall.EBUSY

// OSError couples one of the package's sentinel errors with the OS error
// code that caused it.
type OSError struct {
	Err   error
	Errno syscall.Errno
}

func (e *OSError) Error() string {
	return fmt.Sprintf("%v: errno %d (%v)", e.Err, int(e.Errno), error(e.Errno))
}

func (e *OSError) Unwrap() error { return e.Err }

// osErr wraps sentinel with the errno extracted from cause. A cause that is
// not an errno (only possible off the syscall paths) degrades to plain
// wrapping.
func osErr(sentinel error, cause error) error {
	var errno syscall.Errno
	if errors.As(cause, &errno) {
		return &OSError{Err: sentinel, Errno: errno}
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}
