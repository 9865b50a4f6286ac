package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// instruments caches per-name metric instruments so repeated RecordMetric
// calls for the same name reuse one Int64Counter/Float64Histogram instead
// of re-registering with the meter on every call. Grounded on the
// teacher's telemetry.MetricInstruments (double-checked locking: an RLock
// fast path for the common already-created case, a Lock-and-recheck path
// for first creation).
type instruments struct {
	meter      metric.Meter
	mu         sync.RWMutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

func newInstruments(meter metric.Meter) *instruments {
	return &instruments{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (in *instruments) counter(name string) (metric.Int64Counter, error) {
	in.mu.RLock()
	c, ok := in.counters[name]
	in.mu.RUnlock()
	if ok {
		return c, nil
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if c, ok = in.counters[name]; ok {
		return c, nil
	}
	c, err := in.meter.Int64Counter(name)
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", name, err)
	}
	in.counters[name] = c
	return c, nil
}

func (in *instruments) histogram(name string) (metric.Float64Histogram, error) {
	in.mu.RLock()
	h, ok := in.histograms[name]
	in.mu.RUnlock()
	if ok {
		return h, nil
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if h, ok = in.histograms[name]; ok {
		return h, nil
	}
	h, err := in.meter.Float64Histogram(name)
	if err != nil {
		return nil, fmt.Errorf("create histogram %s: %w", name, err)
	}
	in.histograms[name] = h
	return h, nil
}

func (in *instruments) recordCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) {
	c, err := in.counter(name)
	if err != nil {
		return
	}
	c.Add(ctx, value, opts...)
}

func (in *instruments) recordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) {
	h, err := in.histogram(name)
	if err != nil {
		return
	}
	h.Record(ctx, value, opts...)
}
