package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheGetSetRoundTrip(t *testing.T) {
	c := New[string](Config{DefaultTTL: time.Minute})
	defer c.Close()

	_, found := c.Get("missing")
	require.False(t, found)

	c.Set("k", "v", 0)
	v, found := c.Get("k")
	require.True(t, found)
	require.Equal(t, "v", v)
}

func TestCacheExpiry(t *testing.T) {
	c := New[int](Config{DefaultTTL: time.Millisecond})
	defer c.Close()

	c.Set("k", 42, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, found := c.Get("k")
	require.False(t, found)
}

func TestCacheEvictsOldestOverCapacity(t *testing.T) {
	c := New[int](Config{DefaultTTL: time.Minute, MaxItems: 2})
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Set("c", 3, 0)

	require.LessOrEqual(t, c.Size(), 2)
	_, found := c.Get("a")
	require.False(t, found, "oldest entry should have been evicted")
}

func TestCacheCleanupExpiredReportsCount(t *testing.T) {
	c := New[int](Config{DefaultTTL: time.Minute})
	defer c.Close()

	c.Set("a", 1, time.Millisecond)
	c.Set("b", 2, time.Hour)
	time.Sleep(5 * time.Millisecond)

	removed := c.CleanupExpired()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, c.Size())
}
