package cache

import (
	"context"
	"sync"

	"github.com/vertice-labs/agentcore/core"
)

// Strategy selects which layer(s) CachingMixin consults.
type Strategy string

const (
	// StrategyExact consults only the exact fingerprint map.
	StrategyExact Strategy = "exact"
	// StrategySemantic consults only the semantic similarity map.
	StrategySemantic Strategy = "semantic"
	// StrategyHybrid tries exact first, then semantic on miss. Set writes
	// to both maps.
	StrategyHybrid Strategy = "hybrid"
)

// MixinConfig configures a CachingMixin.
type MixinConfig struct {
	Strategy Strategy
	Exact    ExactLayer
	Semantic *SemanticCache
	Logger   core.Logger
}

// CachingMixin composes ExactCache and SemanticCache behind a single
// cachedCall contract, per spec §4.4.
type CachingMixin struct {
	mu       sync.Mutex
	strategy Strategy
	exact    ExactLayer
	semantic *SemanticCache
	logger   core.Logger

	totalCalls int64
	hits       int64
	misses     int64
}

// NewCachingMixin constructs a CachingMixin. The caches required by the
// chosen strategy must be non-nil (EXACT needs Exact, SEMANTIC needs
// Semantic, HYBRID needs both).
func NewCachingMixin(cfg MixinConfig) *CachingMixin {
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	return &CachingMixin{
		strategy: cfg.Strategy,
		exact:    cfg.Exact,
		semantic: cfg.Semantic,
		logger:   core.WithComponent(cfg.Logger, "core/cache"),
	}
}

// CallFunc is the cache-miss fallback invoked by CachedCall.
type CallFunc func(ctx context.Context) (interface{}, error)

// CachedCall computes key (using the supplied key if non-empty, else query
// itself), optionally looks it up unless skipCache is set, invokes fn only
// on a miss, stores the result in every map the strategy enables, and
// returns the value plus whether it was served from cache.
func (m *CachingMixin) CachedCall(ctx context.Context, query string, key string, skipCache bool, metadata map[string]interface{}, fn CallFunc) (interface{}, bool, error) {
	lookupKey := key
	if lookupKey == "" {
		lookupKey = query
	}

	m.mu.Lock()
	m.totalCalls++
	m.mu.Unlock()

	if !skipCache {
		if hit, ok := m.lookup(ctx, lookupKey); ok {
			m.mu.Lock()
			m.hits++
			m.mu.Unlock()
			return hit.Value, true, nil
		}
	}

	m.mu.Lock()
	m.misses++
	m.mu.Unlock()

	value, err := fn(ctx)
	if err != nil {
		return nil, false, err
	}

	m.store(ctx, lookupKey, value, metadata)
	return value, false, nil
}

func (m *CachingMixin) lookup(ctx context.Context, key string) (Hit, bool) {
	switch m.strategy {
	case StrategyExact:
		hit, err := m.exact.Get(ctx, key)
		return hit, err == nil
	case StrategySemantic:
		hit, err := m.semantic.Get(ctx, key)
		return hit, err == nil
	case StrategyHybrid:
		if hit, err := m.exact.Get(ctx, key); err == nil {
			return hit, true
		}
		hit, err := m.semantic.Get(ctx, key)
		return hit, err == nil
	default:
		return Hit{}, false
	}
}

func (m *CachingMixin) store(ctx context.Context, key string, value interface{}, metadata map[string]interface{}) {
	switch m.strategy {
	case StrategyExact:
		if err := m.exact.Set(ctx, key, value, 0, metadata); err != nil {
			m.logger.WarnWithContext(ctx, "exact cache set failed", map[string]interface{}{"error": err.Error()})
		}
	case StrategySemantic:
		if err := m.semantic.Set(ctx, key, value, 0, metadata); err != nil {
			m.logger.WarnWithContext(ctx, "semantic cache set failed", map[string]interface{}{"error": err.Error()})
		}
	case StrategyHybrid:
		if err := m.exact.Set(ctx, key, value, 0, metadata); err != nil {
			m.logger.WarnWithContext(ctx, "exact cache set failed", map[string]interface{}{"error": err.Error()})
		}
		if err := m.semantic.Set(ctx, key, value, 0, metadata); err != nil {
			m.logger.WarnWithContext(ctx, "semantic cache set failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// MixinStats reports the mixin's own counters alongside each underlying
// map's stats.
type MixinStats struct {
	TotalCalls     int64
	Hits           int64
	Misses         int64
	OverallHitRate float64
	Exact          *Stats
	Semantic       *Stats
}

// Stats returns a snapshot.
func (m *CachingMixin) Stats() MixinStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := MixinStats{TotalCalls: m.totalCalls, Hits: m.hits, Misses: m.misses}
	if m.totalCalls > 0 {
		out.OverallHitRate = float64(m.hits) / float64(m.totalCalls)
	}
	if m.exact != nil {
		s := m.exact.Stats()
		out.Exact = &s
	}
	if m.semantic != nil {
		s := m.semantic.Stats()
		out.Semantic = &s
	}
	return out
}
