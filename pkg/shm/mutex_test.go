package shm

import (
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexLockUnlock(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	m, span, err := NewMutex[int32](unsafe.Pointer(&buf[0]), 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, span, mutexCtrlSize+4)

	g, err := m.Lock()
	require.NoError(t, err)
	assert.Equal(t, int32(5), *g.Value())
	*g.Value() = 6
	require.NoError(t, g.Release())

	att, attSpan, err := AttachMutex[int32](unsafe.Pointer(&buf[0]))
	require.NoError(t, err)
	assert.Equal(t, span, attSpan)

	g, err = att.Lock()
	require.NoError(t, err)
	assert.Equal(t, int32(6), *g.Value())
	require.NoError(t, g.Release())
}

func TestMutexTryLock(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	m, _, err := NewMutex[int32](unsafe.Pointer(&buf[0]), 0)
	require.NoError(t, err)

	g, err := m.TryLock()
	require.NoError(t, err)

	_, err = m.TryLock()
	assert.ErrorIs(t, err, ErrMutexTryLock)

	require.NoError(t, g.Release())
	g, err = m.TryLock()
	require.NoError(t, err)
	require.NoError(t, g.Release())
}

func TestMutexLockTimeout(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	m, _, err := NewMutex[int32](unsafe.Pointer(&buf[0]), 0)
	require.NoError(t, err)

	g, err := m.Lock()
	require.NoError(t, err)

	start := time.Now()
	_, err = m.LockTimeout(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrMutexTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, g.Release())

	g2, err := m.LockTimeout(time.Second)
	require.NoError(t, err)
	require.NoError(t, g2.Release())
}

func TestMutexContention(t *testing.T) {
	requireLinux(t)
	buf := alignedBuf(64)
	m, _, err := NewMutex[uint64](unsafe.Pointer(&buf[0]), 0)
	require.NoError(t, err)

	const goroutines = 8
	const rounds = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				g, err := m.Lock()
				if !assert.NoError(t, err) {
					return
				}
				*g.Value()++
				assert.NoError(t, g.Release())
			}
		}()
	}
	wg.Wait()

	g, err := m.Lock()
	require.NoError(t, err)
	assert.Equal(t, uint64(goroutines*rounds), *g.Value())
	require.NoError(t, g.Release())
}
