// Package tracer is a small tracing abstraction used by the request
// processors. Code depends on Tracer; OTelTracer adapts OpenTelemetry and
// NoopTracer is used in tests and when tracing is disabled.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span and returns a context carrying it.
	//
	//   ctx, span := t.Start(ctx, tracer.SpanCategoryRun,
	//       tracer.String(tracer.AttrCategory, "contact_info"),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanProcessRequest = "privacy.request.process"
	SpanCategoryRun    = "privacy.category.run"
	SpanRetentionSweep = "privacy.retention.sweep"
)

// Attribute keys.
const (
	AttrRequestID = "request.id"
	AttrKind      = "request.kind"
	AttrCategory  = "category.id"
	AttrOperation = "category.operation"
	AttrAttempt   = "attempt"
	AttrTransient = "error.transient"
	AttrAffected  = "records.affected"
)

// Event names.
const (
	EventRetry = "retry"
)
