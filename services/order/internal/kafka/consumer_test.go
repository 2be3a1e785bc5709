package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type handlerFunc func(ctx context.Context, value []byte) error

func (f handlerFunc) Handle(ctx context.Context, value []byte) error { return f(ctx, value) }

func remoteSpanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("8f3d1c2b4a5e6f708192a3b4c5d6e7f8")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("1a2b3c4d5e6f7081")
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

func TestHeaderCarrierRoundTrip(t *testing.T) {
	prop := propagation.TraceContext{}
	sc := remoteSpanContext(t)
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var headers []kafka.Header
	prop.Inject(ctx, headerCarrier{headers: &headers})
	require.NotEmpty(t, headers)
	assert.Contains(t, headerCarrier{headers: &headers}.Keys(), "traceparent")

	got := trace.SpanContextFromContext(
		prop.Extract(context.Background(), headerCarrier{headers: &headers}))
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.True(t, got.IsRemote())
}

func TestHeaderCarrierMissingKey(t *testing.T) {
	headers := []kafka.Header{{Key: "traceparent", Value: []byte("x")}}
	c := headerCarrier{headers: &headers}
	assert.Equal(t, "x", c.Get("traceparent"))
	assert.Empty(t, c.Get("tracestate"))
}

func TestHandleLinksToProducerTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	sc := remoteSpanContext(t)
	var msg kafka.Message
	otel.GetTextMapPropagator().Inject(
		trace.ContextWithSpanContext(context.Background(), sc),
		headerCarrier{headers: &msg.Headers})
	msg.Value = []byte(`{}`)

	var seen trace.TraceID
	c := &Consumer{
		topic:   "payment-events",
		service: "order",
		handler: handlerFunc(func(ctx context.Context, value []byte) error {
			seen = trace.SpanContextFromContext(ctx).TraceID()
			return nil
		}),
	}

	require.NoError(t, c.handle(context.Background(), msg))
	assert.Equal(t, sc.TraceID(), seen)
}

func TestHandleReturnsHandlerError(t *testing.T) {
	want := errors.New("order not found")
	c := &Consumer{
		topic:   "payment-events",
		service: "order",
		handler: handlerFunc(func(ctx context.Context, value []byte) error { return want }),
	}

	err := c.handle(context.Background(), kafka.Message{Value: []byte(`{}`)})
	assert.ErrorIs(t, err, want)
}
