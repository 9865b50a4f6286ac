package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertice-labs/agentcore/core"
)

func TestResilienceMixin_SucceedsAndCounts(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 10}, nil)
	breaker := NewCircuitBreaker(DefaultCircuitBreakerConfig("t"))
	mixin := NewResilienceMixin(MixinConfig{Provider: "t", Retry: DefaultRetryConfig()}, limiter, breaker)

	val, err := mixin.ResilientCall(context.Background(), 10, func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, int64(1), mixin.Stats().Succeeded)
}

func TestResilienceMixin_RetriesTransientThenFails(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, BaseDelay: 0, MaxDelay: 0, ExponentialBase: 2}
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 10}, nil)
	breaker := NewCircuitBreaker(DefaultCircuitBreakerConfig("t"))
	mixin := NewResilienceMixin(MixinConfig{Provider: "t", Retry: cfg}, limiter, breaker)

	boom := errors.New("boom")
	_, err := mixin.ResilientCall(context.Background(), 1, func(ctx context.Context) (interface{}, error) {
		return nil, core.NewFrameworkError("t", core.KindTransient, boom)
	})
	require.Error(t, err)
	stats := mixin.Stats()
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.Retried)
}

func TestResilienceMixin_CircuitOpenBlocksCall(t *testing.T) {
	cbCfg := DefaultCircuitBreakerConfig("t")
	cbCfg.FailureThreshold = 1
	breaker := NewCircuitBreaker(cbCfg)
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 6000, BurstSize: 10}, nil)
	mixin := NewResilienceMixin(MixinConfig{Provider: "t", Retry: &RetryConfig{MaxRetries: 0}}, limiter, breaker)

	boom := errors.New("boom")
	_, _ = mixin.ResilientCall(context.Background(), 1, func(ctx context.Context) (interface{}, error) {
		return nil, core.NewFrameworkError("t", core.KindPermanent, boom)
	})
	require.Equal(t, StateOpen, breaker.State())

	called := false
	_, err := mixin.ResilientCall(context.Background(), 1, func(ctx context.Context) (interface{}, error) {
		called = true
		return nil, nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, int64(1), mixin.Stats().BlockedByCircuit)
}
