package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrInvalidExporter names an unrecognised exporter kind passed to
// NewTraceExporter/NewMetricReader.
var ErrInvalidExporter = errors.New("telemetry: invalid exporter")

// NewTraceExporter builds a span exporter by name.
//
//   - "stdout": writes traces to stdout, for local/dev runs.
//   - "none"/"": discards every span.
func NewTraceExporter(name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidExporter, name)
	}
}

// NewMetricReader builds a metric reader by name.
//
//   - "stdout": periodically writes metrics to stdout, for local/dev runs.
//   - "prometheus": exposes metrics to a pull-based Prometheus scrape via
//     the default Prometheus registry (see Handler in prometheus.go).
//   - "none"/"": discards every metric.
func NewMetricReader(_ context.Context, name string) (sdkmetric.Reader, error) {
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case "prometheus":
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return exp, nil
	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidExporter, name)
	}
}
