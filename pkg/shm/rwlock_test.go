package shm

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRWLockNewAttachRoundTrip(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)

	lk, span, err := NewRWLock[int32](unsafe.Pointer(&buf[0]), 101)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, span, rwCtrlSize+4)

	att, attSpan, err := AttachRWLock[int32](unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	assert.Equal(t, span, attSpan, "owner and attacher must consume identical spans")

	g, err := att.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(101), *g.Value())
	require.NoError(t, g.Release())

	w, err := lk.Write()
	require.NoError(t, err)
	*w.Value() = 123
	require.NoError(t, w.Release())

	g, err = att.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(123), *g.Value())
	require.NoError(t, g.Release())
}

func TestRWLockAttachNil(t *testing.T) {
	_, _, err := AttachRWLock[int32](nil)
	assert.ErrorIs(t, err, ErrInvalidPointer)
}

func TestRWLockConcurrentReaders(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	lk, _, err := NewRWLock[int64](unsafe.Pointer(&buf[0]), 7)
	require.NoError(t, err)

	g1, err := lk.Read()
	require.NoError(t, err)
	g2, err := lk.TryRead()
	require.NoError(t, err, "a second reader must be admitted alongside the first")
	assert.Equal(t, int64(7), *g2.Value())

	_, err = lk.TryWrite()
	assert.ErrorIs(t, err, ErrTryWriteLock, "a writer must be refused while readers hold the lock")

	require.NoError(t, g1.Release())
	require.NoError(t, g2.Release())

	w, err := lk.TryWrite()
	require.NoError(t, err)
	require.NoError(t, w.Release())
}

func TestRWLockTryReadBlockedByWriter(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	lk, _, err := NewRWLock[int64](unsafe.Pointer(&buf[0]), 0)
	require.NoError(t, err)

	w, err := lk.Write()
	require.NoError(t, err)
	_, err = lk.TryRead()
	assert.ErrorIs(t, err, ErrTryReadLock)
	_, err = lk.TryWrite()
	assert.ErrorIs(t, err, ErrTryWriteLock)
	require.NoError(t, w.Release())
}

// pair is written as one unit; any reader observing a != b has seen a torn
// write.
type pair struct {
	a uint64
	b uint64
}

func TestRWLockMutualExclusion(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	lk, _, err := NewRWLock[pair](unsafe.Pointer(&buf[0]), pair{})
	require.NoError(t, err)

	const writers = 8
	const rounds = 500

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				w, err := lk.Write()
				if !assert.NoError(t, err) {
					return
				}
				v := id*uint64(rounds) + uint64(r)
				w.Value().a = v
				w.Value().b = v
				assert.NoError(t, w.Release())
			}
		}(uint64(i))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < writers*rounds; i++ {
			g, err := lk.Read()
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, g.Value().a, g.Value().b, "torn write observed")
			assert.NoError(t, g.Release())
		}
	}()

	wg.Wait()
	<-done
}

func TestRWLockGuardReleaseIdempotent(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	lk, _, err := NewRWLock[int32](unsafe.Pointer(&buf[0]), 0)
	require.NoError(t, err)

	g, err := lk.Read()
	require.NoError(t, err)
	require.NoError(t, g.Release())
	require.NoError(t, g.Release())

	w, err := lk.TryWrite()
	require.NoError(t, err, "double release must not corrupt the reader count")
	require.NoError(t, w.Release())
	require.NoError(t, w.Release())
}
