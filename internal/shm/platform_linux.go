//go:build linux

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Map opens or creates the named shared memory object and maps it shared
// and read/write. The returned region's size is the requested size when
// creating, or the object's current size when attaching.
func Map(opts MapOptions) (*MappedRegion, error) {
	path := Path(opts.Name)
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if opts.Create {
		if opts.Size <= 0 {
			return nil, fmt.Errorf("map %s: size must be positive, got %d", opts.Name, opts.Size)
		}
		if !CanCreateOnDevShm(uint64(opts.Size), path) {
			return nil, fmt.Errorf("map %s (%d bytes): %w", opts.Name, opts.Size, ErrNotEnoughDevShmSpace)
		}
		flags |= unix.O_CREAT
	}
	fd, err := unix.Open(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	size := opts.Size
	if opts.Create {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate %s: %w", path, err)
		}
	} else {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("fstat %s: %w", path, err)
		}
		size = int(st.Size)
		if size <= 0 {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("map %s: object has invalid size %d", opts.Name, size)
		}
	}

	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &MappedRegion{Name: opts.Name, Fd: fd, Size: size, Addr: addr}, nil
}

// Unmap releases the mapping. The region's Addr is nil afterwards.
func Unmap(r *MappedRegion) error {
	if r == nil || r.Addr == nil {
		return nil
	}
	err := unix.Munmap(r.Addr)
	r.Addr = nil
	return err
}

// Unlink removes the named object from the shared memory namespace.
func Unlink(name string) error {
	return unix.Unlink(Path(name))
}

// CloseFd closes the object's file descriptor.
func CloseFd(fd int) error {
	return unix.Close(fd)
}
