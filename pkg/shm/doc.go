// Package shm provides zero-copy, cross-process data exchange over POSIX
// shared memory: named segments, process-shared read/write locks and mutexes
// placed at caller-chosen addresses inside a segment, and a
// multi-producer/multi-consumer ring buffer built from lock-guarded slots.
//
// Processes coordinate through nothing but a segment name and a capacity.
// Both sides compute identical byte offsets from the same parameters, so a
// consumer reconstructs the producer's layout without any out-of-band
// exchange beyond agreeing on the payload type and capacity:
//
//	seg, err := shm.Create(ctx, "/market_data", shm.RingSize[int32](10))
//	ring, err := shm.NewRing[int32](seg, 10)
//	err = ring.Write(42)
//
//	// In another process:
//	seg, err := shm.Open(ctx, "/market_data")
//	ring, err := shm.AttachRing[int32](seg)
//	v, err := ring.Read()
//
// Synchronization is futex-based and blocks in the kernel only under
// contention. The ring is a latest-values buffer, not a queue: a consumer
// that falls behind skips values, and its first read starts at the most
// recent write (see ReadPolicy for the alternatives).
//
// Linux only. Other platforms compile but constructors return
// ErrPlatformNotSupported.
package shm
