package safety

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRateLimiterBurstThenRefill verifies the bucket absorbs a burst up
// to capacity, refuses the next call, and refills over time.
func TestRateLimiterBurstThenRefill(t *testing.T) {
	rl := NewRateLimiter("test", 3, 10)

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow(), "burst call %d should pass", i)
	}
	assert.False(t, rl.Allow(), "bucket should be empty after the burst")

	// 10 tokens/s puts a whole token back within 150ms.
	time.Sleep(150 * time.Millisecond)
	assert.True(t, rl.Allow())
}

// TestRateLimiterWaitRespectsContext verifies Wait gives up when the
// context expires before a token becomes available.
func TestRateLimiterWaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter("test", 1, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestRateLimiterStats verifies the diagnostic view reflects consumption.
func TestRateLimiterStats(t *testing.T) {
	rl := NewRateLimiter("venue", 5, 2)

	stats := rl.Stats()
	assert.Equal(t, "venue", stats.Name)
	assert.Equal(t, 5.0, stats.Capacity)
	assert.Equal(t, 2.0, stats.RefillRate)
	assert.InDelta(t, 5.0, stats.Tokens, 0.1)

	rl.Allow()
	rl.Allow()
	assert.Less(t, rl.Stats().Tokens, 3.2)
}
