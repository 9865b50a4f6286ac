// Package router implements the VerticeClient: an ordered-priority-list
// provider router with per-provider failure counters and eligibility gating,
// grounded on the teacher's ai/chain_client.go ChainClient.
package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/provider"
)

// providerEntry tracks one provider's position in the priority list plus its
// runtime eligibility state.
type providerEntry struct {
	p            provider.Provider
	failures     int
	lastErr      string
	successCount int64
	failureCount int64
}

// Config configures a VerticeClient.
type Config struct {
	// FailureThreshold is the consecutive-failure count at which a provider
	// becomes ineligible. Only a successful call resets the count, and an
	// ineligible provider is not called.
	FailureThreshold int
	Logger           core.Logger
	Telemetry        core.Telemetry
}

func applyDefaults(cfg *Config) {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &core.NoOpTelemetry{}
	}
}

// VerticeClient walks an ordered list of providers, failing over to the
// next eligible one. The list order is the sole tie-breaker; it is mutated
// in place by SetPreferredProvider rather than re-sorted by any score.
type VerticeClient struct {
	mu      sync.Mutex
	cfg     Config
	entries []*providerEntry
	logger  core.Logger
}

// New builds a VerticeClient over providers in priority order (index 0 is
// tried first).
func New(cfg Config, providers ...provider.Provider) *VerticeClient {
	applyDefaults(&cfg)
	entries := make([]*providerEntry, 0, len(providers))
	for _, p := range providers {
		entries = append(entries, &providerEntry{p: p})
	}
	return &VerticeClient{
		cfg:     cfg,
		entries: entries,
		logger:  core.WithComponent(cfg.Logger, "core/router"),
	}
}

// SetPreferredProvider moves the named provider to the head of the priority
// list. It is a no-op if the name isn't present.
func (v *VerticeClient) SetPreferredProvider(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, e := range v.entries {
		if e.p.Name() == name {
			v.entries = append(v.entries[:i], v.entries[i+1:]...)
			v.entries = append([]*providerEntry{e}, v.entries...)
			return
		}
	}
}

func (v *VerticeClient) eligible(e *providerEntry) bool {
	return e.p.IsAvailable() && e.failures < v.cfg.FailureThreshold
}

func (v *VerticeClient) recordSuccess(e *providerEntry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e.failures = 0
	e.successCount++
	e.lastErr = ""
}

func (v *VerticeClient) recordFailure(e *providerEntry, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e.failures++
	e.failureCount++
	e.lastErr = err.Error()
}

// snapshot returns a copy of the entry slice to iterate over without
// holding the lock across provider calls.
func (v *VerticeClient) snapshot() []*providerEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*providerEntry, len(v.entries))
	copy(out, v.entries)
	return out
}

// forwardOptions drops any option a provider doesn't support, rather than
// passing it through and letting the adapter error on it, per spec §4.2.
func forwardOptions(p provider.Provider, opts provider.Options) provider.Options {
	if !p.SupportsTools() {
		opts.Tools = nil
	}
	return opts
}

// StreamChat walks the priority list, trying each eligible provider in
// order. The first provider whose StreamChat call does not error has its
// entire chunk stream forwarded to the caller unchanged, with no
// reordering or deduplication — the concatenation of chunks the caller
// receives is exactly the concatenation the winning provider produced.
func (v *VerticeClient) StreamChat(ctx context.Context, messages []core.Message, opts provider.Options) (<-chan provider.Chunk, error) {
	entries := v.snapshot()

	var tried []string
	errs := map[string]string{}

	for _, e := range entries {
		if !v.eligible(e) {
			continue
		}
		name := e.p.Name()
		tried = append(tried, name)

		ch, err := e.p.StreamChat(ctx, messages, forwardOptions(e.p, opts))
		if err != nil {
			v.recordFailure(e, err)
			errs[name] = err.Error()
			v.logger.WarnWithContext(ctx, "provider stream_chat failed, advancing", map[string]interface{}{
				"provider": name,
				"error":    err.Error(),
			})
			continue
		}

		// The channel open succeeded; success/failure for this provider is
		// now determined by whether the stream itself surfaces a ChunkError.
		v.recordSuccess(e)
		return v.wrapAndWatch(ctx, e, ch), nil
	}

	if len(tried) == 0 {
		return nil, core.NewFrameworkError("router.StreamChat", core.KindUnknown, core.ErrNoEligibleProviders)
	}
	return nil, &core.AllProvidersExhaustedError{Tried: tried, Errors: errs}
}

// wrapAndWatch relays ch verbatim to a new channel while watching for a
// terminal ChunkError to fold back into the entry's failure counter — a
// mid-stream failure still counts against the provider even though the
// initial call succeeded.
func (v *VerticeClient) wrapAndWatch(ctx context.Context, e *providerEntry, ch <-chan provider.Chunk) <-chan provider.Chunk {
	out := make(chan provider.Chunk)
	go func() {
		defer close(out)
		for chunk := range ch {
			if chunk.Type == provider.ChunkError && chunk.Err != nil {
				v.recordFailure(e, chunk.Err)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				cancelErr := core.WrapCancelled("router.StreamChat", ctx)
				v.recordFailure(e, cancelErr)
				out <- provider.Chunk{Type: provider.ChunkError, Err: cancelErr}
				return
			}
		}
	}()
	return out
}

// Generate is the non-streaming counterpart to StreamChat, with the same
// failover semantics.
func (v *VerticeClient) Generate(ctx context.Context, messages []core.Message, opts provider.Options) (*provider.Result, error) {
	entries := v.snapshot()

	var tried []string
	errs := map[string]string{}

	for _, e := range entries {
		if !v.eligible(e) {
			continue
		}
		name := e.p.Name()
		tried = append(tried, name)

		result, err := e.p.Generate(ctx, messages, forwardOptions(e.p, opts))
		if err != nil {
			v.recordFailure(e, err)
			errs[name] = err.Error()
			v.logger.WarnWithContext(ctx, "provider generate failed, advancing", map[string]interface{}{
				"provider": name,
				"error":    err.Error(),
			})
			continue
		}
		v.recordSuccess(e)
		return result, nil
	}

	if len(tried) == 0 {
		return nil, core.NewFrameworkError("router.Generate", core.KindUnknown, core.ErrNoEligibleProviders)
	}
	return nil, &core.AllProvidersExhaustedError{Tried: tried, Errors: errs}
}

// ProviderStatus is one provider's entry in a status snapshot.
type ProviderStatus struct {
	Name         string `json:"name"`
	Available    bool   `json:"available"`
	Eligible     bool   `json:"eligible"`
	Failures     int    `json:"failures"`
	SuccessCount int64  `json:"success_count"`
	FailureCount int64  `json:"failure_count"`
	LastError    string `json:"last_error,omitempty"`
}

// Status returns a point-in-time snapshot of every provider's counters, in
// current priority order.
func (v *VerticeClient) Status() []ProviderStatus {
	entries := v.snapshot()
	out := make([]ProviderStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProviderStatus{
			Name:         e.p.Name(),
			Available:    e.p.IsAvailable(),
			Eligible:     v.eligible(e),
			Failures:     e.failures,
			SuccessCount: e.successCount,
			FailureCount: e.failureCount,
			LastError:    e.lastErr,
		})
	}
	return out
}

// String renders a compact human-readable summary, handy for logging.
func (s ProviderStatus) String() string {
	return fmt.Sprintf("%s(available=%v eligible=%v failures=%d)", s.Name, s.Available, s.Eligible, s.Failures)
}
