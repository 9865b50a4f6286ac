package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertice-labs/agentcore/core"
)

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	cfg := DefaultRetryConfig()
	attempts := 0
	err := Retry(context.Background(), "t", cfg, func(ctx context.Context) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_TransientEventuallySucceeds(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 20 * time.Millisecond, ExponentialBase: 2, Jitter: 0}
	attempts := 0
	err := Retry(context.Background(), "t", cfg, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return core.NewFrameworkError("t", core.KindTransient, errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_PermanentFailsImmediately(t *testing.T) {
	cfg := DefaultRetryConfig()
	attempts := 0
	err := Retry(context.Background(), "t", cfg, func(ctx context.Context) error {
		attempts++
		return core.NewFrameworkError("t", core.KindPermanent, errors.New("bad request"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ExhaustsMaxRetries(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, ExponentialBase: 2}
	attempts := 0
	boom := errors.New("boom")
	err := Retry(context.Background(), "t", cfg, func(ctx context.Context) error {
		attempts++
		return core.NewFrameworkError("t", core.KindTransient, boom)
	})
	require.ErrorIs(t, err, core.ErrMaxRetriesExceeded)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestRetry_RespectsRetryAfter(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2, RespectRetryAfter: true}
	attempts := 0
	start := time.Now()
	err := Retry(context.Background(), "t", cfg, func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return &core.FrameworkError{Kind: core.KindRateLimit, RetryAfter: 30 * time.Millisecond, Err: errors.New("slow down")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRetry_CancelledContextStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Retry(ctx, "t", DefaultRetryConfig(), func(ctx context.Context) error {
		attempts++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, attempts)
}

func TestDelayForAttempt_ClampsToMaxAndMin(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: time.Second, MaxDelay: 2 * time.Second, ExponentialBase: 10, Jitter: 0}
	d := delayForAttempt(cfg, 5)
	assert.Equal(t, 2*time.Second, d)

	tiny := &RetryConfig{BaseDelay: time.Microsecond, MaxDelay: time.Second, ExponentialBase: 2, Jitter: 0}
	d = delayForAttempt(tiny, 0)
	assert.Equal(t, minRetryDelay, d)
}
