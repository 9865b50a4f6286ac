package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertice-labs/agentcore/core"
)

func TestExactCache_SetThenGetHits(t *testing.T) {
	c := NewExactCache(Config{Capacity: 10}, nil)
	c.Set(context.Background(), "Hello  World", "response-a", time.Minute, nil)

	hit, err := c.Get(context.Background(), "hello world") // case + whitespace normalised
	require.NoError(t, err)
	assert.Equal(t, "response-a", hit.Value)
	assert.Equal(t, 1.0, hit.Similarity)
}

func TestExactCache_MissReasons(t *testing.T) {
	c := NewExactCache(Config{Capacity: 10}, nil)

	_, err := c.Get(context.Background(), "nope")
	var missErr *core.CacheMissError
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, "not_found", missErr.Reason)

	c.Set(context.Background(), "expiring", "v", time.Millisecond, nil)
	time.Sleep(5 * time.Millisecond)
	_, err = c.Get(context.Background(), "expiring")
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, "expired", missErr.Reason)
}

func TestExactCache_EvictsLeastRecentlyAccessed(t *testing.T) {
	c := NewExactCache(Config{Capacity: 2}, nil)
	c.Set(context.Background(), "a", "1", time.Hour, nil)
	c.Set(context.Background(), "b", "2", time.Hour, nil)

	// touch "a" so "b" becomes the LRU victim
	_, err := c.Get(context.Background(), "a")
	require.NoError(t, err)

	c.Set(context.Background(), "c", "3", time.Hour, nil)

	_, err = c.Get(context.Background(), "b")
	assert.Error(t, err, "b should have been evicted")
	_, err = c.Get(context.Background(), "a")
	assert.NoError(t, err)
	_, err = c.Get(context.Background(), "c")
	assert.NoError(t, err)
}

func TestExactCache_StatsHitRate(t *testing.T) {
	c := NewExactCache(Config{Capacity: 10}, nil)
	c.Set(context.Background(), "q", "v", time.Hour, nil)

	_, _ = c.Get(context.Background(), "q")
	_, _ = c.Get(context.Background(), "missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.OverallHitRate)
}

func constantEmbed(vec []float64) EmbedFunc {
	return func(ctx context.Context, text string) ([]float64, error) { return vec, nil }
}

func TestSemanticCache_SimilarityHitAboveThreshold(t *testing.T) {
	embeds := map[string][]float64{
		"what is the capital of france":  {1, 0, 0},
		"what's the capital city of fr?": {0.99, 0.01, 0},
	}
	embed := func(ctx context.Context, text string) ([]float64, error) {
		if v, ok := embeds[text]; ok {
			return v, nil
		}
		return []float64{0, 0, 1}, nil
	}

	sc := NewSemanticCache(SemanticConfig{Config: Config{Capacity: 10}, SimilarityThreshold: 0.9, Embed: embed}, nil)
	require.NoError(t, sc.Set(context.Background(), "what is the capital of france", "Paris", time.Hour, nil))

	hit, err := sc.Get(context.Background(), "what's the capital city of fr?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", hit.Value)
	assert.Greater(t, hit.Similarity, 0.9)
}

func TestSemanticCache_LowSimilarityMisses(t *testing.T) {
	sc := NewSemanticCache(SemanticConfig{
		Config:              Config{Capacity: 10},
		SimilarityThreshold: 0.95,
		Embed:               constantEmbed([]float64{1, 0}),
	}, nil)
	require.NoError(t, sc.Set(context.Background(), "stored", "v", time.Hour, nil))

	sc.embed = func(ctx context.Context, text string) ([]float64, error) { return []float64{0, 1}, nil }
	_, err := sc.Get(context.Background(), "orthogonal query")

	var missErr *core.CacheMissError
	require.ErrorAs(t, err, &missErr)
	assert.Equal(t, "low_similarity", missErr.Reason)
}

func TestCosineSimilarity_ZeroNormIsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0, 0}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, []float64{1}))
}

func TestCachingMixin_HybridServesRepeatQueryFromCache(t *testing.T) {
	exact := NewExactCache(Config{Capacity: 10}, nil)
	semantic := NewSemanticCache(SemanticConfig{
		Config:              Config{Capacity: 10},
		SimilarityThreshold: 0.8,
		Embed:               constantEmbed([]float64{1, 0}),
	}, nil)
	mixin := NewCachingMixin(MixinConfig{Strategy: StrategyHybrid, Exact: exact, Semantic: semantic})

	calls := 0
	fn := func(ctx context.Context) (interface{}, error) {
		calls++
		return "computed", nil
	}

	v1, fromCache1, err := mixin.CachedCall(context.Background(), "query one", "", false, nil, fn)
	require.NoError(t, err)
	assert.False(t, fromCache1)
	assert.Equal(t, "computed", v1)

	// Same fingerprint: exact hit, fn not called again.
	v2, fromCache2, err := mixin.CachedCall(context.Background(), "query one", "", false, nil, fn)
	require.NoError(t, err)
	assert.True(t, fromCache2)
	assert.Equal(t, "computed", v2)
	assert.Equal(t, 1, calls)

	stats := mixin.Stats()
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestCachingMixin_SkipCacheAlwaysInvokesFn(t *testing.T) {
	exact := NewExactCache(Config{Capacity: 10}, nil)
	mixin := NewCachingMixin(MixinConfig{Strategy: StrategyExact, Exact: exact})

	calls := 0
	fn := func(ctx context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	mixin.CachedCall(context.Background(), "q", "", false, nil, fn)
	_, fromCache, err := mixin.CachedCall(context.Background(), "q", "", true, nil, fn)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 2, calls)
}

func TestCachingMixin_PropagatesFnError(t *testing.T) {
	exact := NewExactCache(Config{Capacity: 10}, nil)
	mixin := NewCachingMixin(MixinConfig{Strategy: StrategyExact, Exact: exact})

	boom := errors.New("boom")
	_, _, err := mixin.CachedCall(context.Background(), "q", "", false, nil, func(ctx context.Context) (interface{}, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
}
