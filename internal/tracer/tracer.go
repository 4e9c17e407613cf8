// Package tracer wraps statement execution in tracing spans. It ships an
// OpenTelemetry adapter and a no-op default.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around executed statements.
type Tracer interface {
	// StartSpan starts a new tracing span with the given name
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span captures one statement execution.
type Span interface {
	// SetAttributes attaches statement attributes to the span
	SetAttributes(attrs ...attribute.KeyValue)
	// RecordError records a failed execution
	RecordError(err error)
	// SetStatus sets the span outcome and its description
	SetStatus(code codes.Code, description string)
	// End finishes the span
	End()
}

// NoopTracer is used when tracing is not configured.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

// noopSpan discards everything recorded on it.
type noopSpan struct{}

// SetAttributes does nothing.
func (noopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (noopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (noopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (noopSpan) End() {}

// OtelTracer adapts an OpenTelemetry trace.Tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a tracer backed by OpenTelemetry.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a client span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, otelSpan{span: span}
}

// otelSpan narrows trace.Span, whose methods take variadic options, to Span.
type otelSpan struct {
	span trace.Span
}

// SetAttributes sets attrs on the underlying span.
func (s otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError adds err as an event on the underlying span.
func (s otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the underlying span.
func (s otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End ends the underlying span.
func (s otelSpan) End() {
	s.span.End()
}

// Statement describes an executed statement for span attributes, following
// the OpenTelemetry database semantic conventions.
type Statement struct {
	Dialect      string // sqlmap dialect name
	Kind         string // SELECT, INSERT, ...
	Table        string
	SQL          string
	Params       int
	RowsAffected int64
	Duration     time.Duration
	Err          error
}

// SpanName returns the span name for a statement kind, e.g. "sqlmap.select".
func SpanName(kind string) string {
	return "sqlmap." + strings.ToLower(kind)
}

// System maps a dialect name to the db.system attribute value.
func System(dialect string) string {
	switch dialect {
	case "postgres":
		return "postgresql"
	case "mssql":
		return "mssql"
	case "mysql", "sqlite":
		return dialect
	}
	return "other_sql"
}

// Annotate records the statement on span and sets its status.
func Annotate(span Span, s *Statement) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", System(s.Dialect)),
		attribute.String("db.statement", s.SQL),
		attribute.String("db.operation", s.Kind),
		attribute.Int("db.sqlmap.params", s.Params),
		attribute.Float64("db.duration_ms", float64(s.Duration.Microseconds())/1000.0),
	}
	if s.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", s.Table))
	}
	if s.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", s.RowsAffected))
	}
	span.SetAttributes(attrs...)

	if s.Err != nil {
		span.RecordError(s.Err)
		span.SetStatus(codes.Error, s.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
