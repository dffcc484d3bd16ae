package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopTracerReturnsContextUnchanged(t *testing.T) {
	ctx := context.Background()
	got, span := NewNoop().Start(ctx, SpanCategoryRun, String(AttrCategory, "contact_info"))

	assert.Equal(t, ctx, got)
	require.NotNil(t, span)
	span.AddEvent(EventRetry, Int(AttrAttempt, 2))
	span.End(errors.New("boom"))
}

func TestOTelTracerWithGlobalProvider(t *testing.T) {
	tr := NewOTel()
	_, span := tr.Start(context.Background(), SpanProcessRequest, String(AttrKind, "ACCESS"))
	span.SetAttributes(Bool(AttrTransient, false))
	span.End(nil)
}

func TestToOTelAttributes(t *testing.T) {
	got := toOTelAttributes([]Attribute{
		String(AttrCategory, "location"),
		Bool(AttrTransient, true),
		Int(AttrAffected, 3),
		Duration("elapsed_ms", 1500*time.Millisecond),
		{Key: "ignored", Value: struct{}{}},
	})

	assert.Equal(t, []attribute.KeyValue{
		attribute.String(AttrCategory, "location"),
		attribute.Bool(AttrTransient, true),
		attribute.Int64(AttrAffected, 3),
		attribute.Int64("elapsed_ms", 1500),
	}, got)
	assert.Nil(t, toOTelAttributes(nil))
}
