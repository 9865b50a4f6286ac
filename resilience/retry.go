package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vertice-labs/agentcore/core"
)

// RetryConfig configures the retry handler per spec §4.1.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	ExponentialBase   float64
	Jitter            float64 // fraction in [0,1]; delay perturbed by ±(delay*Jitter)
	RespectRetryAfter bool
}

// DefaultRetryConfig provides sensible defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		ExponentialBase:   2.0,
		Jitter:            0.1,
		RespectRetryAfter: true,
	}
}

func (c *RetryConfig) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.ExponentialBase <= 0 {
		c.ExponentialBase = 2.0
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
}

const minRetryDelay = 100 * time.Millisecond

// delayForAttempt computes min(baseDelay*exponentialBase^n, maxDelay)
// perturbed by uniform jitter in ±(delay*jitter), clamped to >= 100ms.
func delayForAttempt(cfg *RetryConfig, attempt int) time.Duration {
	raw := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt))
	if raw > float64(cfg.MaxDelay) {
		raw = float64(cfg.MaxDelay)
	}
	if cfg.Jitter > 0 {
		spread := raw * cfg.Jitter
		raw += (rand.Float64()*2 - 1) * spread
	}
	d := time.Duration(raw)
	if d < minRetryDelay {
		d = minRetryDelay
	}
	return d
}

// Retry executes fn, retrying according to config and the error
// classification in §7: Transient/Unknown retry, Permanent fails
// immediately, RateLimit sleeps (honouring a server retry-after) then
// retries. fn's operation name is used only for the final wrapped error.
func Retry(ctx context.Context, op string, config *RetryConfig, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	config.applyDefaults()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return core.WrapCancelled(op, ctx)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		kind := core.Classify(err)
		if kind == core.KindPermanent {
			return err
		}

		if attempt >= config.MaxRetries {
			break
		}

		delay := delayForAttempt(config, attempt)
		if config.RespectRetryAfter {
			if after, ok := core.AsRetryAfter(err); ok {
				delay = after
				if delay > config.MaxDelay {
					delay = config.MaxDelay
				}
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return core.WrapCancelled(op, ctx)
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry: %s: %w: %v", op, core.ErrMaxRetriesExceeded, lastErr)
}
