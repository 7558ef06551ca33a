package runtimecache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/konsulhq/konsul/pkg/models"
)

func TestSetGetDelete(t *testing.T) {
	c := New()

	assert.Equal(t, models.RuntimeIdle, c.Get("a1b2c3d4"), "unknown session reads idle")

	require.NoError(t, c.Set("a1b2c3d4", models.RuntimeProcessing))
	assert.Equal(t, models.RuntimeProcessing, c.Get("a1b2c3d4"))

	c.Delete("a1b2c3d4")
	assert.Equal(t, models.RuntimeIdle, c.Get("a1b2c3d4"))
}

func TestCapacityLimit(t *testing.T) {
	c := New()

	for i := 0; i < MaxEntries; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("%08x", i), models.RuntimeIdle))
	}

	err := c.Set("ffffffff", models.RuntimeProcessing)
	assert.ErrorIs(t, err, ErrCacheFull)

	// Updating an existing entry is still allowed at capacity.
	assert.NoError(t, c.Set("00000001", models.RuntimeCompleting))
	assert.Equal(t, models.RuntimeCompleting, c.Get("00000001"))
}

func TestExpiredEntryReadsIdle(t *testing.T) {
	c := New()
	c.ttl = 10 * time.Millisecond

	require.NoError(t, c.Set("a1b2c3d4", models.RuntimeError))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, models.RuntimeIdle, c.Get("a1b2c3d4"))
}

func TestSweepEvicts(t *testing.T) {
	c := New()
	c.ttl = 5 * time.Millisecond

	require.NoError(t, c.Set("a1b2c3d4", models.RuntimeProcessing))
	require.NoError(t, c.Set("b1b2c3d4", models.RuntimeProcessing))
	require.Equal(t, 2, c.Len())

	time.Sleep(10 * time.Millisecond)
	c.evictExpired()
	assert.Zero(t, c.Len())
}
