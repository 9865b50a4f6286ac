package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vertice-labs/agentcore/core"
)

// RedisExactCache is an ExactCache variant backed by Redis instead of a
// process-local map, for deployments that need the cache to survive
// restarts or be shared across instances. It implements the same
// Get/Set/Stats surface as ExactCache so a CachingMixin can use either
// interchangeably — grounded on the teacher's pkg/memory/implementations.go
// RedisMemory (namespaced keys, JSON-serialized values, TTL via SET EX).
type RedisExactCache struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
	logger     core.Logger

	mu    sync.Mutex
	stats Stats
}

// RedisConfig configures a RedisExactCache.
type RedisConfig struct {
	URL        string
	Namespace  string
	DefaultTTL time.Duration
}

// NewRedisExactCache parses url and pings the server once at construction
// time, matching the teacher's fail-fast-on-construction behavior.
func NewRedisExactCache(ctx context.Context, cfg RedisConfig, logger core.Logger) (*RedisExactCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "agentcore:cache"
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	return &RedisExactCache{
		client:     client,
		namespace:  namespace,
		defaultTTL: cfg.DefaultTTL,
		logger:     core.WithComponent(logger, "core/cache"),
	}, nil
}

func (r *RedisExactCache) buildKey(fingerprint string) string {
	return fmt.Sprintf("%s:%s", r.namespace, fingerprint)
}

type redisEntry struct {
	Value     json.RawMessage        `json:"value"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Get fetches query's fingerprint from Redis. TTL expiration is enforced by
// Redis itself; a missing key surfaces as not_found.
func (r *RedisExactCache) Get(ctx context.Context, query string) (Hit, error) {
	r.mu.Lock()
	r.stats.TotalCalls++
	r.mu.Unlock()
	key := r.buildKey(Fingerprint(query))

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		r.mu.Lock()
		r.stats.Misses++
		r.mu.Unlock()
		return Hit{}, &core.CacheMissError{Reason: "not_found"}
	}
	if err != nil {
		r.mu.Lock()
		r.stats.Misses++
		r.mu.Unlock()
		return Hit{}, fmt.Errorf("redis get: %w", err)
	}

	var stored redisEntry
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		r.mu.Lock()
		r.stats.Misses++
		r.mu.Unlock()
		return Hit{}, fmt.Errorf("decode cache entry: %w", err)
	}

	var value interface{}
	if err := json.Unmarshal(stored.Value, &value); err != nil {
		value = string(stored.Value)
	}

	r.mu.Lock()
	r.stats.Hits++
	r.mu.Unlock()
	return Hit{
		Value: value,
		Entry: &CacheEntry{
			Key:       key,
			Value:     value,
			Metadata:  stored.Metadata,
			CreatedAt: stored.CreatedAt,
		},
		Similarity: 1.0,
	}, nil
}

// Set serializes value as JSON and stores it under query's fingerprint with
// the given TTL (or the configured default if zero).
func (r *RedisExactCache) Set(ctx context.Context, query string, value interface{}, ttl time.Duration, metadata map[string]interface{}) error {
	if ttl == 0 {
		ttl = r.defaultTTL
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	payload, err := json.Marshal(redisEntry{Value: valueJSON, Metadata: metadata, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	key := r.buildKey(Fingerprint(query))
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Stats returns a snapshot. Redis doesn't report eviction counts to us, so
// Evictions always reads zero — entries Redis's own maxmemory-policy drops
// are not counted; this cache only counts the hits/misses it directly
// observes.
func (r *RedisExactCache) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return withHitRate(r.stats)
}

// Close releases the underlying connection pool.
func (r *RedisExactCache) Close() error {
	return r.client.Close()
}

var _ ExactLayer = (*RedisExactCache)(nil)
