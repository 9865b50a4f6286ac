package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the standard Prometheus scrape handler. It only serves
// real data when Config.MetricExporter was "prometheus" — the
// go.opentelemetry.io/otel/exporters/prometheus reader registers its
// collector with the default Prometheus registry on construction, so the
// handler needs no reference back to the Provider. Grounded on
// BaSui01-agentflow's cmd/agentflow/server.go, which wires the same
// promhttp.Handler() at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
