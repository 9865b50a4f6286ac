package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/vertice-labs/agentcore/core"
)

// RateLimitConfig configures a token-bucket RateLimiter per spec §4.1.
type RateLimitConfig struct {
	RequestsPerMinute int // refill rate; converted to tokens/second
	BurstSize         int // bucket capacity

	// AdaptiveMin/AdaptiveMax bound the adaptive factor that scales the
	// effective refill rate down (>1) when rate-limit errors are observed
	// and decays back toward 1.0 on sustained success.
	AdaptiveMin float64
	AdaptiveMax float64
}

func (c *RateLimitConfig) applyDefaults() {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 600
	}
	if c.BurstSize <= 0 {
		c.BurstSize = 10
	}
	if c.AdaptiveMin <= 0 {
		c.AdaptiveMin = 1.0
	}
	if c.AdaptiveMax <= 0 {
		c.AdaptiveMax = 8.0
	}
}

// RateLimiter is a token bucket over golang.org/x/time/rate, with an
// adaptive factor layered on top: observed rate-limit errors raise the
// factor (shrinking the effective refill rate), sustained successes decay
// it back toward 1.0.
type RateLimiter struct {
	cfg     RateLimitConfig
	limiter *rate.Limiter
	logger  core.Logger

	mu             sync.Mutex
	adaptiveFactor float64
	successStreak  atomic.Int64
}

// NewRateLimiter constructs a RateLimiter from cfg.
func NewRateLimiter(cfg RateLimitConfig, logger core.Logger) *RateLimiter {
	cfg.applyDefaults()
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	perSecond := float64(cfg.RequestsPerMinute) / 60.0
	return &RateLimiter{
		cfg:            cfg,
		limiter:        rate.NewLimiter(rate.Limit(perSecond), cfg.BurstSize),
		logger:         componentLogger(logger, "core/resilience"),
		adaptiveFactor: 1.0,
	}
}

func (rl *RateLimiter) effectiveLimit() rate.Limit {
	rl.mu.Lock()
	factor := rl.adaptiveFactor
	rl.mu.Unlock()
	base := float64(rl.cfg.RequestsPerMinute) / 60.0
	return rate.Limit(base / factor)
}

// Acquire blocks until nTokens are available or ctx is done. It honours the
// adaptive factor by adjusting the limiter's rate before reserving.
func (rl *RateLimiter) Acquire(ctx context.Context, nTokens int) error {
	if nTokens <= 0 {
		nTokens = 1
	}
	rl.limiter.SetLimit(rl.effectiveLimit())

	reservation := rl.limiter.ReserveN(time.Now(), nTokens)
	if !reservation.OK() {
		return core.NewFrameworkError("rate_limiter.acquire", core.KindPermanent,
			core.ErrInvalidConfiguration)
	}
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return core.ErrRateLimitDeadlineExceeded
	}
}

// TryAcquire is the non-blocking variant: it takes the tokens immediately
// if available, or returns false without waiting.
func (rl *RateLimiter) TryAcquire(nTokens int) bool {
	if nTokens <= 0 {
		nTokens = 1
	}
	rl.limiter.SetLimit(rl.effectiveLimit())
	return rl.limiter.AllowN(time.Now(), nTokens)
}

// OnRateLimitError raises the adaptive factor, slowing future issuance.
// Call this when the wrapped provider call itself returned a rate-limit
// error, i.e. our estimate of capacity was too generous.
func (rl *RateLimiter) OnRateLimitError() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.successStreak.Store(0)
	rl.adaptiveFactor *= 1.5
	if rl.adaptiveFactor > rl.cfg.AdaptiveMax {
		rl.adaptiveFactor = rl.cfg.AdaptiveMax
	}
	rl.logger.Info("rate limiter adaptive factor raised", map[string]interface{}{
		"factor": rl.adaptiveFactor,
	})
}

// successDecayThreshold is how many consecutive successes it takes before
// the adaptive factor starts decaying back toward 1.0.
const successDecayThreshold = 20

// OnSuccess records a successful call; after a sustained run of successes
// the adaptive factor decays toward 1.0.
func (rl *RateLimiter) OnSuccess() {
	streak := rl.successStreak.Add(1)
	if streak%successDecayThreshold != 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.adaptiveFactor <= rl.cfg.AdaptiveMin {
		rl.adaptiveFactor = rl.cfg.AdaptiveMin
		return
	}
	rl.adaptiveFactor = 1.0 + (rl.adaptiveFactor-1.0)*0.5
	if rl.adaptiveFactor < rl.cfg.AdaptiveMin {
		rl.adaptiveFactor = rl.cfg.AdaptiveMin
	}
}

// AdaptiveFactor reports the current multiplier, for status snapshots.
func (rl *RateLimiter) AdaptiveFactor() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.adaptiveFactor
}
