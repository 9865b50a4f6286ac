// Command agentcore runs a standalone agent gateway: it wires a provider
// priority list through the router, exposes the Open Responses SSE stream
// and background task API over HTTP, and serves Prometheus metrics.
// Grounded on the teacher's core/cmd/example/main.go (flat main, env-driven
// config, log.Fatal on setup failure).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vertice-labs/agentcore/cache"
	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/gateway"
	"github.com/vertice-labs/agentcore/mesh"
	"github.com/vertice-labs/agentcore/provider"
	"github.com/vertice-labs/agentcore/provider/anthropic"
	"github.com/vertice-labs/agentcore/provider/bedrock"
	"github.com/vertice-labs/agentcore/provider/mock"
	"github.com/vertice-labs/agentcore/provider/openai"
	"github.com/vertice-labs/agentcore/router"
	"github.com/vertice-labs/agentcore/telemetry"
)

func main() {
	logger := core.NewJSONLogger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telProvider, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:    envOr("AGENTCORE_SERVICE_NAME", "agent-gateway"),
		TraceExporter:  envOr("AGENTCORE_TRACE_EXPORTER", "stdout"),
		MetricExporter: envOr("AGENTCORE_METRIC_EXPORTER", "prometheus"),
	})
	if err != nil {
		log.Fatalf("telemetry setup failed: %v", err)
	}
	defer telProvider.Shutdown(context.Background())

	providers := buildProviders(logger, telProvider)
	if len(providers) == 0 {
		logger.InfoWithContext(ctx, "no provider credentials found, falling back to the mock provider", nil)
		providers = []provider.Provider{mock.New("mock")}
	}

	vc := router.New(router.Config{Logger: logger, Telemetry: telProvider}, providers...)

	// RegisterWorker seeds the mesh with the same providers the router
	// fails over across, so a caller that prefers mesh-coordinated
	// execution over single-request failover can route tasks across them.
	m := mesh.New(mesh.Config{Name: "agent-gateway", Logger: logger})
	for _, p := range providers {
		m.RegisterWorker(p.Name(), map[string]interface{}{"role": "provider"})
	}

	respCache := buildCache(ctx, logger)

	gw := gateway.NewHandler(gateway.Config{Responder: vc, Logger: logger, Telemetry: telProvider, Router: vc, Mesh: m, Cache: respCache})

	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	mux.Handle("/metrics", telemetry.Handler())

	addr := ":" + envOr("AGENTCORE_PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.InfoWithContext(ctx, "agent gateway listening", map[string]interface{}{
			"addr":      addr,
			"providers": len(providers),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithContext(shutdownCtx, "graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// buildProviders constructs one adapter per credential found in the
// environment, in the priority order the router will try them: Anthropic,
// then OpenAI, then Bedrock. Adapters for missing credentials are skipped
// rather than constructed-and-marked-unavailable, since VerticeClient's
// eligibility gating is about runtime failures, not absent configuration.
func buildProviders(logger core.Logger, tel core.Telemetry) []provider.Provider {
	var providers []provider.Provider

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		providers = append(providers, anthropic.New(
			anthropic.WithAPIKey(key),
			anthropic.WithModel(envOr("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest")),
			anthropic.WithLogger(logger),
			anthropic.WithTelemetry(tel),
		))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		providers = append(providers, openai.New(
			openai.WithAPIKey(key),
			openai.WithModel(envOr("OPENAI_MODEL", "gpt-4o")),
			openai.WithLogger(logger),
			openai.WithTelemetry(tel),
		))
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		ctx := context.Background()
		providers = append(providers, bedrock.New(ctx,
			bedrock.WithRegion(region),
			bedrock.WithModel(envOr("BEDROCK_MODEL", "anthropic.claude-3-5-sonnet-20241022-v2:0")),
			bedrock.WithLogger(logger),
			bedrock.WithTelemetry(tel),
		))
	}
	return providers
}

// buildCache wires the response cache's exact-match layer: REDIS_URL, when
// set, gets a shared RedisExactCache so cached responses survive restarts
// and are visible across instances; otherwise the gateway falls back to a
// process-local ExactCache, mirroring buildProviders' env-gated construction.
func buildCache(ctx context.Context, logger core.Logger) *cache.CachingMixin {
	var exact cache.ExactLayer
	if url := os.Getenv("REDIS_URL"); url != "" {
		redisCache, err := cache.NewRedisExactCache(ctx, cache.RedisConfig{
			URL:        url,
			Namespace:  envOr("AGENTCORE_CACHE_NAMESPACE", "agentcore:cache"),
			DefaultTTL: 10 * time.Minute,
		}, logger)
		if err != nil {
			logger.InfoWithContext(ctx, "redis cache unavailable, falling back to in-memory cache", map[string]interface{}{"error": err.Error()})
		} else {
			exact = redisCache
		}
	}
	if exact == nil {
		exact = cache.NewExactCache(cache.Config{DefaultTTL: 10 * time.Minute}, logger)
	}

	return cache.NewCachingMixin(cache.MixinConfig{Strategy: cache.StrategyExact, Exact: exact, Logger: logger})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
