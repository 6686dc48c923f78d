//go:build !linux

package shm

// Map is unavailable off Linux: the lock primitives layered on these
// regions need futexes, so other platforms get a uniform error instead of
// a mapping they could not synchronize on.
func Map(opts MapOptions) (*MappedRegion, error) {
	return nil, ErrPlatformNotSupported
}

// Unmap is a no-op off Linux.
func Unmap(r *MappedRegion) error {
	return nil
}

// Unlink is unavailable off Linux.
func Unlink(name string) error {
	return ErrPlatformNotSupported
}

// CloseFd is a no-op off Linux.
func CloseFd(fd int) error {
	return nil
}
