//go:build !linux

package shm

import (
	"syscall"
	"time"
)

// FutexWait is unavailable off Linux.
func FutexWait(addr *uint32, val uint32) error {
	return syscall.ENOSYS
}

// FutexWaitTimeout is unavailable off Linux.
func FutexWaitTimeout(addr *uint32, val uint32, d time.Duration) error {
	return syscall.ENOSYS
}

// FutexWake is unavailable off Linux.
func FutexWake(addr *uint32, n int) error {
	return syscall.ENOSYS
}
