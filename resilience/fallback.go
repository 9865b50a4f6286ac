package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vertice-labs/agentcore/core"
)

// NamedFunc is one entry in a FallbackHandler's ordered list.
type NamedFunc struct {
	Name string
	Fn   func(ctx context.Context) (interface{}, error)
}

// FallbackConfig configures a FallbackHandler per spec §4.1.
type FallbackConfig struct {
	PerProviderTimeout time.Duration
	Parallel           bool
	Logger             core.Logger
}

func (c *FallbackConfig) applyDefaults() {
	if c.PerProviderTimeout <= 0 {
		c.PerProviderTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = &core.NoOpLogger{}
	}
}

// FallbackResult is returned by Execute.
type FallbackResult struct {
	Value           interface{}
	ProviderUsed    string
	TotalAttempts   int
	PerProviderErr  map[string]string
}

// FallbackHandler tries an ordered list of named functions, sequentially or
// in parallel, until one succeeds.
type FallbackHandler struct {
	cfg       FallbackConfig
	providers []NamedFunc
}

// NewFallbackHandler builds a handler over providers, tried in list order.
func NewFallbackHandler(cfg FallbackConfig, providers []NamedFunc) *FallbackHandler {
	cfg.applyDefaults()
	return &FallbackHandler{cfg: cfg, providers: providers}
}

// Execute runs the provider chain. In sequential mode, total latency is
// bounded by sum(perProviderTimeout); in parallel mode, by
// max(perProviderTimeout) — every provider is launched concurrently and the
// first success wins, cancelling the rest.
func (h *FallbackHandler) Execute(ctx context.Context) (*FallbackResult, error) {
	if h.cfg.Parallel {
		return h.executeParallel(ctx)
	}
	return h.executeSequential(ctx)
}

func (h *FallbackHandler) executeSequential(ctx context.Context) (*FallbackResult, error) {
	errs := make(map[string]string, len(h.providers))
	tried := make([]string, 0, len(h.providers))

	for _, p := range h.providers {
		if ctx.Err() != nil {
			return nil, core.WrapCancelled("resilience.Fallback", ctx)
		}
		tried = append(tried, p.Name)

		attemptCtx, cancel := context.WithTimeout(ctx, h.cfg.PerProviderTimeout)
		value, err := p.Fn(attemptCtx)
		cancel()

		if err == nil {
			return &FallbackResult{
				Value:          value,
				ProviderUsed:   p.Name,
				TotalAttempts:  len(tried),
				PerProviderErr: errs,
			}, nil
		}

		errs[p.Name] = err.Error()
		h.cfg.Logger.Warn("fallback provider failed", map[string]interface{}{
			"provider": p.Name,
			"error":    err.Error(),
		})
	}

	return nil, &core.AllProvidersExhaustedError{Tried: tried, Errors: errs}
}

type parallelOutcome struct {
	name  string
	value interface{}
	err   error
}

func (h *FallbackHandler) executeParallel(ctx context.Context) (*FallbackResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan parallelOutcome, len(h.providers))
	var wg sync.WaitGroup
	for _, p := range h.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			attemptCtx, cancelAttempt := context.WithTimeout(ctx, h.cfg.PerProviderTimeout)
			defer cancelAttempt()
			value, err := p.Fn(attemptCtx)
			select {
			case results <- parallelOutcome{name: p.Name, value: value, err: err}:
			case <-ctx.Done():
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	errs := make(map[string]string, len(h.providers))
	tried := make([]string, 0, len(h.providers))
	for outcome := range results {
		tried = append(tried, outcome.name)
		if outcome.err == nil {
			cancel() // stop the remaining in-flight providers
			return &FallbackResult{
				Value:          outcome.value,
				ProviderUsed:   outcome.name,
				TotalAttempts:  len(tried),
				PerProviderErr: errs,
			}, nil
		}
		errs[outcome.name] = outcome.err.Error()
	}

	return nil, &core.AllProvidersExhaustedError{Tried: tried, Errors: errs}
}

func (r *FallbackResult) String() string {
	return fmt.Sprintf("provider=%s attempts=%d", r.ProviderUsed, r.TotalAttempts)
}
