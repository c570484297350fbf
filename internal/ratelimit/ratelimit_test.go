package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitEnforcesSpacing(t *testing.T) {
	limiter := NewIntervalLimiter(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "second call must wait out the interval")
}

func TestWaitFirstCallImmediate(t *testing.T) {
	limiter := NewIntervalLimiter(time.Hour)

	// lastCall is zero, so the elapsed time dwarfs any interval.
	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	limiter := NewIntervalLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSetInterval(t *testing.T) {
	limiter := NewIntervalLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	limiter.SetInterval(0)

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestZeroIntervalNeverBlocks(t *testing.T) {
	limiter := NewIntervalLimiter(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(context.Background()))
	}
}
