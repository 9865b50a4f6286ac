// Package cache implements the two-layer response cache (exact fingerprint
// + semantic similarity) and the mixin that composes them, grounded on the
// teacher's pkg/memory/implementations.go TTL/mutex store patterns,
// generalized from key/value byte storage to CacheEntry-aware lookup with
// similarity scoring.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/vertice-labs/agentcore/core"
)

// CacheEntry is one stored response plus its bookkeeping.
type CacheEntry struct {
	Key            string
	Value          interface{}
	Embedding      []float64
	Metadata       map[string]interface{}
	CreatedAt      time.Time
	LastAccessedAt time.Time
	TTL            time.Duration
}

func (e *CacheEntry) expired(now time.Time) bool {
	return e.TTL > 0 && now.After(e.CreatedAt.Add(e.TTL))
}

// Hit is a successful lookup result.
type Hit struct {
	Value      interface{}
	Entry      *CacheEntry
	Similarity float64
}

// Fingerprint normalises text (lowercase, whitespace-trimmed) and hashes it
// to a fixed-width hex string, the exact cache's key derivation.
func Fingerprint(text string) string {
	normalised := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(sum[:])
}

// Config bounds a cache's size and default entry lifetime.
type Config struct {
	Capacity   int
	DefaultTTL time.Duration
}

func applyDefaults(cfg *Config) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
}

// Stats reports cache effectiveness.
type Stats struct {
	TotalCalls     int64
	Hits           int64
	Misses         int64
	Evictions      int64
	OverallHitRate float64
}

// ExactCache maps a normalised fingerprint to a CacheEntry, LRU by
// LastAccessedAt, with TTL expiration on read. All operations are
// serialised under a single mutex per instance.
type ExactCache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*CacheEntry
	stats   Stats
	logger  core.Logger
}

// NewExactCache constructs an ExactCache.
func NewExactCache(cfg Config, logger core.Logger) *ExactCache {
	applyDefaults(&cfg)
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &ExactCache{
		cfg:     cfg,
		entries: make(map[string]*CacheEntry),
		logger:  core.WithComponent(logger, "core/cache"),
	}
}

// Get looks up query's fingerprint. A miss distinguishes not_found from
// expired so callers (and the hybrid mixin) can tell the two apart. ctx is
// accepted but unused by this in-memory implementation; it exists so
// ExactCache and RedisExactCache satisfy the same ExactLayer interface.
func (c *ExactCache) Get(ctx context.Context, query string) (Hit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalCalls++

	key := Fingerprint(query)
	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return Hit{}, &core.CacheMissError{Reason: "not_found"}
	}
	if entry.expired(time.Now()) {
		delete(c.entries, key)
		c.stats.Misses++
		return Hit{}, &core.CacheMissError{Reason: "expired"}
	}

	entry.LastAccessedAt = time.Now()
	c.stats.Hits++
	return Hit{Value: entry.Value, Entry: entry, Similarity: 1.0}, nil
}

// Set stores value under query's fingerprint, purging expired entries and
// then, if still at capacity, evicting the least-recently-accessed entry.
// ctx is accepted but unused, matching Get.
func (c *ExactCache) Set(ctx context.Context, query string, value interface{}, ttl time.Duration, metadata map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	now := time.Now()
	c.purgeExpiredLocked(now)
	if len(c.entries) >= c.cfg.Capacity {
		c.evictLRULocked()
	}

	key := Fingerprint(query)
	c.entries[key] = &CacheEntry{
		Key:            key,
		Value:          value,
		Metadata:       metadata,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
	}
	return nil
}

// ExactLayer is the Get/Set surface CachingMixin needs from its exact-match
// layer. ExactCache (process-local) and RedisExactCache (shared, durable)
// both satisfy it, so a mixin can be pointed at either without caring which.
type ExactLayer interface {
	Get(ctx context.Context, query string) (Hit, error)
	Set(ctx context.Context, query string, value interface{}, ttl time.Duration, metadata map[string]interface{}) error
	Stats() Stats
}

var (
	_ ExactLayer = (*ExactCache)(nil)
)

func (c *ExactCache) purgeExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}

func (c *ExactCache) evictLRULocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.LastAccessedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.LastAccessedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// Stats returns a snapshot with OverallHitRate computed.
func (c *ExactCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return withHitRate(c.stats)
}

func withHitRate(s Stats) Stats {
	if s.TotalCalls > 0 {
		s.OverallHitRate = float64(s.Hits) / float64(s.TotalCalls)
	}
	return s
}

// EmbedFunc produces an embedding vector for a piece of text. Production
// callers must inject a real implementation (e.g. backed by a hosted
// embeddings endpoint); there is no network-calling default in this package.
type EmbedFunc func(ctx context.Context, text string) ([]float64, error)

// SemanticCache holds, per key, a value plus the embedding it was stored
// with, and falls back to cosine-similarity search on an exact-key miss.
type SemanticCache struct {
	mu                  sync.Mutex
	cfg                 Config
	similarityThreshold float64
	embed               EmbedFunc
	entries             map[string]*CacheEntry
	stats               Stats
	logger              core.Logger
}

// SemanticConfig configures a SemanticCache.
type SemanticConfig struct {
	Config
	SimilarityThreshold float64
	Embed               EmbedFunc
}

// NewSemanticCache constructs a SemanticCache. Embed must be non-nil.
func NewSemanticCache(cfg SemanticConfig, logger core.Logger) *SemanticCache {
	applyDefaults(&cfg.Config)
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.85
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &SemanticCache{
		cfg:                 cfg.Config,
		similarityThreshold: cfg.SimilarityThreshold,
		embed:               cfg.Embed,
		entries:             make(map[string]*CacheEntry),
		logger:              core.WithComponent(logger, "core/cache"),
	}
}

// Get tries the exact key first; on miss, it embeds query and returns the
// best cached entry whose cosine similarity exceeds similarityThreshold.
// Ties go to the higher similarity; on equal similarity, the more recently
// accessed entry wins.
func (c *SemanticCache) Get(ctx context.Context, query string) (Hit, error) {
	c.mu.Lock()
	c.stats.TotalCalls++
	key := Fingerprint(query)
	now := time.Now()

	if entry, ok := c.entries[key]; ok && !entry.expired(now) {
		entry.LastAccessedAt = now
		c.stats.Hits++
		c.mu.Unlock()
		return Hit{Value: entry.Value, Entry: entry, Similarity: 1.0}, nil
	}
	c.mu.Unlock()

	queryEmbedding, err := c.embed(ctx, query)
	if err != nil {
		c.mu.Lock()
		c.stats.Misses++
		c.mu.Unlock()
		return Hit{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var best *CacheEntry
	var bestSim float64
	for _, e := range c.entries {
		if e.expired(now) {
			continue
		}
		sim := cosineSimilarity(queryEmbedding, e.Embedding)
		if sim < c.similarityThreshold {
			continue
		}
		if best == nil || sim > bestSim || (sim == bestSim && e.LastAccessedAt.After(best.LastAccessedAt)) {
			best = e
			bestSim = sim
		}
	}

	if best == nil {
		c.stats.Misses++
		return Hit{}, &core.CacheMissError{Reason: "low_similarity"}
	}

	best.LastAccessedAt = now
	c.stats.Hits++
	return Hit{Value: best.Value, Entry: best, Similarity: bestSim}, nil
}

// Set embeds query, purges expired entries, evicts LRU if at capacity, and
// stores value keyed by query's fingerprint.
func (c *SemanticCache) Set(ctx context.Context, query string, value interface{}, ttl time.Duration, metadata map[string]interface{}) error {
	embedding, err := c.embed(ctx, query)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.cfg.DefaultTTL
	}
	now := time.Now()
	c.purgeExpiredLocked(now)
	if len(c.entries) >= c.cfg.Capacity {
		c.evictLRULocked()
	}

	key := Fingerprint(query)
	c.entries[key] = &CacheEntry{
		Key:            key,
		Value:          value,
		Embedding:      embedding,
		Metadata:       metadata,
		CreatedAt:      now,
		LastAccessedAt: now,
		TTL:            ttl,
	}
	return nil
}

func (c *SemanticCache) purgeExpiredLocked(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}

func (c *SemanticCache) evictLRULocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.LastAccessedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.LastAccessedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// Stats returns a snapshot with OverallHitRate computed.
func (c *SemanticCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return withHitRate(c.stats)
}

// cosineSimilarity returns 0 for a zero-norm vector on either side.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
