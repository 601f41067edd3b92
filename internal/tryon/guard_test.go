package tryon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardAllowsOneInFlight(t *testing.T) {
	var g Guard

	first, ctx, err := g.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, g.InFlight())

	_, _, err = g.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrInFlight)

	assert.True(t, g.Release(first))
	assert.False(t, g.InFlight())
	assert.Error(t, ctx.Err())

	second, _, err := g.Acquire(context.Background())
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)
	assert.True(t, g.Release(second))
}

func TestGuardResetDropsStaleResponse(t *testing.T) {
	var g Guard

	stale, ctx, err := g.Acquire(context.Background())
	require.NoError(t, err)

	g.Reset()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, g.InFlight())

	fresh, _, err := g.Acquire(context.Background())
	require.NoError(t, err)

	assert.False(t, g.Release(stale))
	assert.True(t, g.InFlight(), "stale release must not end the fresh request")
	assert.True(t, g.Release(fresh))
}
