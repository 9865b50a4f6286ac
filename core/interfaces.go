package core

import (
	"context"
)

// Logger is the minimal structured logging interface used throughout the
// runtime. Implementations are expected to be safe for concurrent use.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with a component tag, so a single
// logger instance can be specialised per layer without reconfiguring sinks.
//
// Component naming convention:
//   - "core/resilience" - retry, circuit breaker, rate limiter, fallback
//   - "core/router"     - VerticeClient provider routing
//   - "core/cache"      - exact/semantic response cache
//   - "core/stream"     - Open Responses SSE translator
//   - "core/mesh"       - task classification, topology, dispatch
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry is the optional tracing/metrics facade consumed by every
// component. A nil Telemetry is never passed around; callers use NoOpTelemetry.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a single unit of traced work.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Role is a Message's author, per §3 of the data model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is the canonical chat payload element. Ordered sequences of
// Messages are what every Provider, the Router, and the cache key on.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token accounting for a completed generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NoOpLogger discards everything. Used as the zero-value default so
// components never need a nil check on their logger field.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// WithComponent satisfies ComponentAwareLogger by returning itself: a no-op
// stays a no-op regardless of component tag.
func (n *NoOpLogger) WithComponent(component string) Logger { return n }

// NoOpTelemetry discards spans and metrics.
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}
func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan discards attributes and errors.
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// componentLogger wraps a Logger with a fixed component tag merged into
// every field map. It is returned by ComponentAwareLogger implementations
// that don't otherwise tag their output (e.g. a plain JSON logger).
type componentLogger struct {
	base      Logger
	component string
}

// WithComponent returns a Logger that stamps component onto every entry.
// If base already implements ComponentAwareLogger, its own WithComponent is
// preferred by callers; this helper exists for loggers that don't.
func WithComponent(base Logger, component string) Logger {
	if base == nil {
		base = &NoOpLogger{}
	}
	return &componentLogger{base: base, component: component}
}

func (c *componentLogger) merge(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["component"] = c.component
	return out
}

func (c *componentLogger) Info(msg string, fields map[string]interface{}) {
	c.base.Info(msg, c.merge(fields))
}
func (c *componentLogger) Error(msg string, fields map[string]interface{}) {
	c.base.Error(msg, c.merge(fields))
}
func (c *componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.base.Warn(msg, c.merge(fields))
}
func (c *componentLogger) Debug(msg string, fields map[string]interface{}) {
	c.base.Debug(msg, c.merge(fields))
}
func (c *componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.InfoWithContext(ctx, msg, c.merge(fields))
}
func (c *componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.ErrorWithContext(ctx, msg, c.merge(fields))
}
func (c *componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.WarnWithContext(ctx, msg, c.merge(fields))
}
func (c *componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.DebugWithContext(ctx, msg, c.merge(fields))
}
func (c *componentLogger) WithComponent(component string) Logger {
	return &componentLogger{base: c.base, component: component}
}
