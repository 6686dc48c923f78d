package shm

import "unsafe"

// All in-segment structures are placed by pure arithmetic over
// (base address, capacity, payload type): the initializing process and every
// attaching process run the same computations here and can never disagree on
// an offset. Everything is aligned to the native pointer width.

const ptrAlign = int(unsafe.Sizeof(uintptr(0)))

// The shared write-sequence counter and header fields are 8-byte atomics
// inside a mapping, which is only sound on 64-bit platforms.
const is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// alignPtr rounds p up to the pointer width and returns the new pointer and
// the padding consumed.
func alignPtr(p unsafe.Pointer) (unsafe.Pointer, int) {
	rem := int(uintptr(p) % uintptr(ptrAlign))
	if rem == 0 {
		return p, 0
	}
	pad := ptrAlign - rem
	return unsafe.Add(p, pad), pad
}

// alignUp rounds n up to the pointer width.
func alignUp(n int) int {
	return (n + ptrAlign - 1) &^ (ptrAlign - 1)
}

// sizeOf is unsafe.Sizeof for a type parameter.
func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// slotStride is the worst-case byte span of one lock-plus-payload slot,
// including the alignment padding that precedes the next slot.
func slotStride[T any]() int {
	return alignUp(rwCtrlSize + sizeOf[T]())
}

// RingSize returns a segment size sufficient for a ring of the given
// capacity over payload type T. The value is a tight upper bound: it covers
// worst-case leading padding, the header, and every slot stride.
func RingSize[T any](capacity int) int {
	return ptrAlign + ringHeaderSize + capacity*slotStride[T]()
}
