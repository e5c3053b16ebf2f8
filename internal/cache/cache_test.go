package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryCacheRoundTrip(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.Set(ctx, "key", payload{Name: "bodega", Count: 3}, time.Minute))

	var got payload
	hit, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "bodega", got.Name)
	assert.Equal(t, 3, got.Count)

	hit, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestInMemoryCacheExpiry(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", "value", time.Nanosecond))
	time.Sleep(time.Millisecond)

	var got string
	hit, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestInMemoryCacheDelete(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	require.NoError(t, c.Delete(ctx, "a", "b"))

	var got int
	hit, err := c.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
