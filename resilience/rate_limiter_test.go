package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_TryAcquireRespectsBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2}, nil)
	assert.True(t, rl.TryAcquire(1))
	assert.True(t, rl.TryAcquire(1))
	assert.False(t, rl.TryAcquire(1), "burst exhausted")
}

func TestRateLimiter_AcquireBlocksThenSucceeds(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 1}, nil)
	require.NoError(t, rl.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, rl.Acquire(ctx, 1))
}

func TestRateLimiter_AcquireRespectsDeadline(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1}, nil)
	require.NoError(t, rl.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx, 1)
	require.Error(t, err)
}

func TestRateLimiter_AdaptiveFactorRisesAndDecays(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 600, BurstSize: 5}, nil)
	assert.Equal(t, 1.0, rl.AdaptiveFactor())

	rl.OnRateLimitError()
	assert.Greater(t, rl.AdaptiveFactor(), 1.0)

	for i := 0; i < successDecayThreshold; i++ {
		rl.OnSuccess()
	}
	assert.Less(t, rl.AdaptiveFactor(), 1.5)
}
