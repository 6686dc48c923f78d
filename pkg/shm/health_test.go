package shm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentCheck(t *testing.T) {
	requireLinux(t)
	ctx := context.Background()
	name := testSegmentName(t)

	check := SegmentCheck(name)
	assert.Error(t, check(), "check must fail before the segment exists")

	seg, err := Create(ctx, name, RingSize[int32](4))
	require.NoError(t, err)

	assert.Error(t, check(), "check must fail before the ring is initialized")

	_, err = NewRing[int32](seg, 4)
	require.NoError(t, err)
	assert.NoError(t, check())

	seg.Close()
	assert.Error(t, check(), "check must fail after the owner tears down")
}
