// Package telemetry wires core.Telemetry to OpenTelemetry: traces and
// metrics for every component that accepts a core.Telemetry (resilience,
// router, gateway, provider adapters), exported via stdout for local
// development or bridged to Prometheus for scraping. Grounded on the
// teacher's telemetry/otel.go (OTelProvider shape, RecordMetric's
// name-pattern heuristic, idempotent sync.Once shutdown) and on
// jonwraymond-toolops's observe/exporters/factory.go (named-exporter
// construction, stdout/prometheus/none).
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/vertice-labs/agentcore/core"
)

// Config selects exporters and names the service for resource attribution.
type Config struct {
	ServiceName string

	// TraceExporter and MetricExporter name the exporter kind: "stdout",
	// "none", or (MetricExporter only) "prometheus". Empty is treated as
	// "none".
	TraceExporter  string
	MetricExporter string

	// MetricInterval is defaulted to 15s by New but is not passed to the
	// metric readers: the stdout and "none" periodic readers flush at the
	// OpenTelemetry SDK's default interval, and the prometheus reader is
	// pull-based.
	MetricInterval time.Duration
}

// Provider implements core.Telemetry with a real OpenTelemetry tracer and
// meter. It is safe for concurrent use; Shutdown is idempotent.
type Provider struct {
	tracer trace.Tracer
	inst   *instruments

	traceProvider  *sdktrace.TracerProvider
	metricProvider *sdkmetric.MeterProvider

	mu           sync.RWMutex
	shutdown     bool
	shutdownOnce sync.Once
}

// New builds a Provider from cfg. The returned Provider also sets itself as
// the process-global OTel tracer/meter provider, matching the teacher's
// behavior, so libraries that call otel.Tracer/otel.Meter directly (rather
// than going through core.Telemetry) still export through the same pipeline.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("telemetry: service name is required")
	}
	interval := cfg.MetricInterval
	if interval == 0 {
		interval = 15 * time.Second
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
	)

	traceExporter, err := NewTraceExporter(cfg.TraceExporter)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	metricReader, err := NewMetricReader(ctx, cfg.MetricExporter)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricReader),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Provider{
		tracer:         tp.Tracer(cfg.ServiceName),
		inst:           newInstruments(mp.Meter(cfg.ServiceName)),
		traceProvider:  tp,
		metricProvider: mp,
	}, nil
}

// StartSpan implements core.Telemetry.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	p.mu.RLock()
	down := p.shutdown
	p.mu.RUnlock()
	if down || p.tracer == nil {
		return ctx, noOpSpan{}
	}

	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements core.Telemetry. It routes name to a counter or a
// histogram by a simple suffix/prefix heuristic on the metric name — the
// same heuristic the teacher's RecordMetric uses, since this module's
// callers (resilience, router, cache) already name their metrics the way
// the teacher does ("circuit_breaker.success", "cache.hit_rate", etc.).
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	p.mu.RLock()
	down := p.shutdown
	p.mu.RUnlock()
	if down {
		return
	}

	ctx := context.Background()
	var attrs []attribute.KeyValue
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	switch {
	case hasAnyPart(name, "duration", "latency", "time"):
		p.inst.recordHistogram(ctx, name, value, metric.WithAttributes(attrs...))
	case hasAnyPart(name, "count", "total", "errors", "success", "hit", "miss"):
		p.inst.recordCounter(ctx, name, int64(value), metric.WithAttributes(attrs...))
	default:
		p.inst.recordHistogram(ctx, name, value, metric.WithAttributes(attrs...))
	}
}

func hasAnyPart(name string, parts ...string) bool {
	for _, part := range parts {
		if strings.HasSuffix(name, part) || strings.HasPrefix(name, part) || strings.Contains(name, "."+part) {
			return true
		}
	}
	return false
}

// Shutdown flushes and stops the trace/metric providers. Safe to call more
// than once; only the first call does the work.
func (p *Provider) Shutdown(ctx context.Context) error {
	var shutdownErr error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.shutdown = true
		p.mu.Unlock()

		var errs []error
		if p.metricProvider != nil {
			if err := p.metricProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown metric provider: %w", err))
			}
		}
		if p.traceProvider != nil {
			if err := p.traceProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown trace provider: %w", err))
			}
		}
		if len(errs) > 0 {
			shutdownErr = fmt.Errorf("telemetry shutdown: %v", errs)
		}
	})
	return shutdownErr
}

var _ core.Telemetry = (*Provider)(nil)
