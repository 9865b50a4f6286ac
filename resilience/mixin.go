package resilience

import (
	"context"
	"sync/atomic"

	"github.com/vertice-labs/agentcore/core"
)

// Counters accumulates the ResilienceMixin's lifetime call statistics.
type Counters struct {
	Total              int64
	Succeeded          int64
	Failed             int64
	Retried            int64
	BlockedByCircuit   int64
	BlockedByRateLimit int64
	FallbackInvoked    int64
}

// MixinConfig configures a ResilienceMixin.
type MixinConfig struct {
	Provider string
	Retry    *RetryConfig
	Logger   core.Logger
}

// ResilienceMixin composes rate-limit → circuit → retry around a single
// provider call, per the spec's §4.1 resilientCall contract.
type ResilienceMixin struct {
	provider string
	limiter  *RateLimiter
	breaker  *CircuitBreaker
	retry    *RetryConfig
	logger   core.Logger

	total              atomic.Int64
	succeeded          atomic.Int64
	failed             atomic.Int64
	retried            atomic.Int64
	blockedByCircuit   atomic.Int64
	blockedByRateLimit atomic.Int64
	fallbackInvoked    atomic.Int64
}

// NewResilienceMixin builds a mixin wrapping the given limiter and breaker
// (both already constructed, shared per provider name by the caller).
func NewResilienceMixin(cfg MixinConfig, limiter *RateLimiter, breaker *CircuitBreaker) *ResilienceMixin {
	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &ResilienceMixin{
		provider: cfg.Provider,
		limiter:  limiter,
		breaker:  breaker,
		retry:    retry,
		logger:   componentLogger(logger, "core/resilience"),
	}
}

// ResilientCall applies (1) rate-limit acquire, (2) circuit gate, (3) retry
// around fn, in that order, and returns fn's value or the final error.
func (m *ResilienceMixin) ResilientCall(ctx context.Context, tokensEstimate int, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	m.total.Add(1)

	if m.limiter != nil {
		if err := m.limiter.Acquire(ctx, tokensEstimate); err != nil {
			m.blockedByRateLimit.Add(1)
			m.failed.Add(1)
			return nil, err
		}
	}

	var result interface{}
	attempts := 0
	call := func(ctx context.Context) error {
		attempts++
		var err error
		result, err = fn(ctx)
		return err
	}

	var execErr error
	if m.breaker != nil {
		execErr = m.breaker.Execute(ctx, func(ctx context.Context) error {
			return Retry(ctx, m.provider, m.retry, call)
		})
	} else {
		execErr = Retry(ctx, m.provider, m.retry, call)
	}

	if attempts > 1 {
		m.retried.Add(int64(attempts - 1))
	}

	if execErr != nil {
		if core.Classify(execErr) == core.KindCircuitOpen {
			m.blockedByCircuit.Add(1)
		}
		if m.limiter != nil {
			if core.Classify(execErr) == core.KindRateLimit {
				m.limiter.OnRateLimitError()
			}
		}
		m.failed.Add(1)
		return nil, execErr
	}

	if m.limiter != nil {
		m.limiter.OnSuccess()
	}
	m.succeeded.Add(1)
	return result, nil
}

// RecordFallbackInvoked lets a caller note that this provider's call was
// itself reached only via fallback, for the mixin's own counters.
func (m *ResilienceMixin) RecordFallbackInvoked() {
	m.fallbackInvoked.Add(1)
}

// Stats returns a point-in-time snapshot of the mixin's counters.
func (m *ResilienceMixin) Stats() Counters {
	return Counters{
		Total:              m.total.Load(),
		Succeeded:          m.succeeded.Load(),
		Failed:             m.failed.Load(),
		Retried:            m.retried.Load(),
		BlockedByCircuit:   m.blockedByCircuit.Load(),
		BlockedByRateLimit: m.blockedByRateLimit.Load(),
		FallbackInvoked:    m.fallbackInvoked.Load(),
	}
}
