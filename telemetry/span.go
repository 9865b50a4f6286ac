package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vertice-labs/agentcore/core"
)

// otelSpan adapts an OpenTelemetry trace.Span to core.Span.
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// noOpSpan satisfies core.Span once the provider has been shut down, or
// before a real tracer is wired, mirroring core.NoOpSpan but kept local so
// shutdown paths don't need to import core for the zero-dependency case.
type noOpSpan struct{}

func (noOpSpan) End()                                       {}
func (noOpSpan) SetAttribute(key string, value interface{}) {}
func (noOpSpan) RecordError(err error)                      {}

var _ core.Span = (*otelSpan)(nil)
var _ core.Span = noOpSpan{}
