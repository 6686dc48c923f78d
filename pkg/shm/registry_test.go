package shm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySharesMapping(t *testing.T) {
	requireLinux(t)
	ctx := context.Background()
	name := testSegmentName(t)
	reg := NewRegistry()

	first, err := reg.Acquire(ctx, name, 4096, true)
	require.NoError(t, err)
	second, err := reg.Acquire(ctx, name, 4096, true)
	require.NoError(t, err)
	assert.Same(t, first, second, "one name must map once per registry")

	held, ok := reg.Get(name)
	require.True(t, ok)
	assert.Same(t, first, held)

	// First release keeps the mapping alive for the remaining holder.
	reg.Release(name)
	_, ok = reg.Get(name)
	assert.True(t, ok)

	reg.Release(name)
	_, ok = reg.Get(name)
	assert.False(t, ok)

	// The registry owned the segment, so the last release unlinked it.
	_, err = Open(ctx, name)
	assert.Error(t, err)
}

func TestRegistryReleaseUnknown(t *testing.T) {
	reg := NewRegistry()
	reg.Release("/never-acquired")
	_, ok := reg.Get("/never-acquired")
	assert.False(t, ok)
}

func TestRegistryOpenExisting(t *testing.T) {
	requireLinux(t)
	ctx := context.Background()
	name := testSegmentName(t)

	owner, err := Create(ctx, name, 2048)
	require.NoError(t, err)
	defer owner.Close()

	reg := NewRegistry()
	seg, err := reg.Acquire(ctx, name, 0, false)
	require.NoError(t, err)
	assert.False(t, seg.Owned())
	assert.Equal(t, 2048, seg.Size())
	reg.Release(name)

	// Releasing a non-owned acquisition must not unlink the object.
	again, err := Open(ctx, name)
	require.NoError(t, err)
	again.Close()
}
