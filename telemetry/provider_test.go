package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestNew_RequiresServiceName(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected an error for an empty service name")
	}
}

func TestNew_EmptyExporterNamesDiscard(t *testing.T) {
	p, err := New(context.Background(), Config{ServiceName: "test-service"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Shutdown(context.Background())

	ctx, span := p.StartSpan(context.Background(), "op")
	if ctx == nil || span == nil {
		t.Fatal("StartSpan returned nil ctx or span")
	}
	span.SetAttribute("k", "v")
	span.RecordError(errors.New("boom"))
	span.End()

	p.RecordMetric("cache.hit_count", 1, map[string]string{"layer": "exact"})
	p.RecordMetric("router.request_duration", 12.5, nil)
}

func TestShutdown_IsIdempotent(t *testing.T) {
	p, err := New(context.Background(), Config{ServiceName: "test-service"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown should be a no-op, got: %v", err)
	}
}

func TestStartSpan_AfterShutdownReturnsNoOp(t *testing.T) {
	p, err := New(context.Background(), Config{ServiceName: "test-service"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Shutdown(context.Background())

	_, span := p.StartSpan(context.Background(), "op")
	if _, ok := span.(noOpSpan); !ok {
		t.Fatalf("expected noOpSpan after shutdown, got %T", span)
	}
}

func TestNewTraceExporter_InvalidNameErrors(t *testing.T) {
	_, err := NewTraceExporter("bogus")
	if !errors.Is(err, ErrInvalidExporter) {
		t.Fatalf("error = %v, want wrapping %v", err, ErrInvalidExporter)
	}
}

func TestNewMetricReader_PrometheusExporter(t *testing.T) {
	reader, err := NewMetricReader(context.Background(), "prometheus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reader == nil {
		t.Fatal("expected a non-nil reader")
	}
}
