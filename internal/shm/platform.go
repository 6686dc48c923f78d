// Package shm contains platform helpers for mapping named POSIX shared
// memory objects and for futex-style blocking on words inside a mapping.
package shm

import (
	"errors"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

const devShmDir = "/dev/shm"

var (
	// ErrPlatformNotSupported is returned by constructors on platforms
	// without POSIX shared memory and futex support.
	ErrPlatformNotSupported = errors.New("shared memory is not supported on this platform")

	// ErrNotEnoughDevShmSpace is returned when /dev/shm lacks the free
	// space a new object would need.
	ErrNotEnoughDevShmSpace = errors.New("/dev/shm has not enough free space")
)

// MappedRegion is a named shared memory object mapped into this process.
type MappedRegion struct {
	Name string
	Fd   int
	Size int
	Addr []byte
}

// MapOptions controls how Map resolves and sizes the object.
type MapOptions struct {
	Name string
	// Size is the object size in bytes when creating. Ignored when
	// attaching to an existing object, whose size comes from fstat.
	Size int
	// Create makes the object if it does not exist and truncates it to
	// Size. Without it, Map fails when the name does not resolve.
	Create bool
}

// Path returns the filesystem path backing a shared memory object name.
func Path(name string) string {
	return devShmDir + "/" + strings.TrimPrefix(name, "/")
}

// CanCreateOnDevShm reports whether a path on /dev/shm has room for size
// bytes. Paths outside /dev/shm and probe failures are not rejected here;
// the subsequent ftruncate surfaces the real error.
func CanCreateOnDevShm(size uint64, path string) bool {
	if !strings.HasPrefix(path, devShmDir) {
		return true
	}
	stat, err := disk.Usage(devShmDir)
	if err != nil {
		return true
	}
	return stat.Free >= size
}
