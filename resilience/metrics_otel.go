package resilience

import "github.com/vertice-labs/agentcore/core"

// telemetryMetrics adapts a core.Telemetry facade to the MetricsCollector
// interface the circuit breaker consumes, so the breaker's package stays
// unaware of OpenTelemetry itself — that wiring lives in telemetry/.
type telemetryMetrics struct {
	t core.Telemetry
}

func (m *telemetryMetrics) RecordSuccess(name string) {
	m.t.RecordMetric("circuit_breaker.success", 1, map[string]string{"circuit_breaker": name})
}

func (m *telemetryMetrics) RecordFailure(name string) {
	m.t.RecordMetric("circuit_breaker.failure", 1, map[string]string{"circuit_breaker": name})
}

func (m *telemetryMetrics) RecordStateChange(name string, from, to CircuitState) {
	m.t.RecordMetric("circuit_breaker.state_change", 1, map[string]string{
		"circuit_breaker": name,
		"from":            from.String(),
		"to":              to.String(),
	})
}

func (m *telemetryMetrics) RecordRejection(name string) {
	m.t.RecordMetric("circuit_breaker.rejected", 1, map[string]string{"circuit_breaker": name})
}
