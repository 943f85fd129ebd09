package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedis(mr.Addr())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	_, ok, err := c.Get(ctx, "https://example.org/a.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "https://example.org/a.csv", "Entity,Year\n", time.Hour))

	v, ok, err := c.Get(ctx, "https://example.org/a.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Entity,Year\n", v)
	assert.True(t, mr.Exists(keyPrefix+"https://example.org/a.csv"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "https://example.org/a.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedis(mr.Addr())
	defer c.Close()
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}
