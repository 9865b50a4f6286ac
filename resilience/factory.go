package resilience

import (
	"github.com/vertice-labs/agentcore/core"
)

// Dependencies holds the optional cross-cutting concerns a resilience
// primitive can be built with. Per the explicit-context design rule, there
// is no global registry fallback: a caller that wants telemetry passes it.
type Dependencies struct {
	Logger    core.Logger
	Telemetry core.Telemetry
}

// Option configures Dependencies.
type Option func(*Dependencies)

// WithLogger injects a logger.
func WithLogger(logger core.Logger) Option {
	return func(d *Dependencies) { d.Logger = logger }
}

// WithTelemetry injects a telemetry facade.
func WithTelemetry(t core.Telemetry) Option {
	return func(d *Dependencies) { d.Telemetry = t }
}

func resolveDependencies(opts ...Option) Dependencies {
	d := Dependencies{Logger: &core.NoOpLogger{}, Telemetry: &core.NoOpTelemetry{}}
	for _, opt := range opts {
		opt(&d)
	}
	if d.Logger == nil {
		d.Logger = &core.NoOpLogger{}
	}
	if d.Telemetry == nil {
		d.Telemetry = &core.NoOpTelemetry{}
	}
	return d
}

func componentLogger(logger core.Logger, component string) core.Logger {
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		return cal.WithComponent(component)
	}
	return logger
}

// NewCircuitBreakerFor builds a named circuit breaker wired with the given
// dependencies, tagging its logger "core/resilience" per the naming
// convention in core.ComponentAwareLogger.
func NewCircuitBreakerFor(name string, cfg *CircuitBreakerConfig, opts ...Option) *CircuitBreaker {
	deps := resolveDependencies(opts...)
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig(name)
	}
	cfg.Name = name
	cfg.Logger = componentLogger(deps.Logger, "core/resilience")
	if deps.Telemetry != nil {
		cfg.Metrics = &telemetryMetrics{t: deps.Telemetry}
	}
	return NewCircuitBreaker(cfg)
}
