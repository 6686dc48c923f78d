package shm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentCreateOpen(t *testing.T) {
	requireLinux(t)
	ctx := context.Background()
	name := testSegmentName(t)

	owner, err := Create(ctx, name, 4096)
	require.NoError(t, err)
	assert.Equal(t, name, owner.Name())
	assert.Equal(t, 4096, owner.Size())
	assert.True(t, owner.Owned())
	require.NotNil(t, owner.Base())

	owner.Bytes()[0] = 0xAB

	attached, err := Open(ctx, name)
	require.NoError(t, err)
	assert.False(t, attached.Owned())
	assert.Equal(t, 4096, attached.Size(), "size must be inferred from the object")
	assert.Equal(t, byte(0xAB), attached.Bytes()[0], "both mappings must view the same bytes")

	attached.Close()
	owner.Close()
}

func TestSegmentTeardownOwnership(t *testing.T) {
	requireLinux(t)
	ctx := context.Background()
	name := testSegmentName(t)

	owner, err := Create(ctx, name, 1024)
	require.NoError(t, err)

	// A non-owning handle's teardown must leave the name resolvable.
	attached, err := Open(ctx, name)
	require.NoError(t, err)
	attached.Close()

	again, err := Open(ctx, name)
	require.NoError(t, err, "object must survive a non-owner close")
	again.Close()

	// The owner's teardown unlinks the name.
	owner.Close()
	_, err = Open(ctx, name)
	assert.Error(t, err, "object must not be resolvable after the owner closes")
}

func TestSegmentCloseIdempotent(t *testing.T) {
	requireLinux(t)
	name := testSegmentName(t)
	seg, err := Create(context.Background(), name, 1024)
	require.NoError(t, err)
	seg.Close()
	seg.Close()
}

func TestSegmentSetOwner(t *testing.T) {
	requireLinux(t)
	ctx := context.Background()
	name := testSegmentName(t)

	owner, err := Create(ctx, name, 1024)
	require.NoError(t, err)
	owner.SetOwner(false)
	owner.Close()

	reopened, err := Open(ctx, name)
	require.NoError(t, err, "disowned handle must not unlink on close")
	reopened.SetOwner(true)
	reopened.Close()

	_, err = Open(ctx, name)
	assert.Error(t, err)
}

func TestSegmentOpenMissing(t *testing.T) {
	requireLinux(t)
	_, err := Open(context.Background(), testSegmentName(t))
	assert.Error(t, err)
}

func TestEventTrail(t *testing.T) {
	DrainEvents() // start from a clean trail

	recordEvent(EventUnlinkFailed, "/trail-test", errors.New("boom"))
	recordEvent(EventUnmapFailed, "/trail-test", errors.New("bang"))

	events := DrainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, EventUnlinkFailed, events[0].Kind)
	assert.Equal(t, "/trail-test", events[0].Segment)
	assert.EqualError(t, events[0].Err, "boom")
	assert.Equal(t, EventUnmapFailed, events[1].Kind)
	assert.False(t, events[0].At.IsZero())

	assert.Empty(t, DrainEvents())
}
