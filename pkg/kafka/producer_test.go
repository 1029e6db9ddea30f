package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("firm.rating_updated", "firm-1", "firm", "vcreviews", map[string]float64{"avgRating": 3.9})
	require.NoError(t, err)

	assert.Len(t, ev.EventID, 36)
	assert.Equal(t, 1, ev.Version)

	var payload map[string]float64
	require.NoError(t, ev.UnmarshalData(&payload))
	assert.Equal(t, 3.9, payload["avgRating"])
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("x", "1", "firm", "vcreviews", make(chan int))
	assert.Error(t, err)
}

func TestProducer_Publish(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prevProp) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "submit")
	defer span.End()

	w := &recordingWriter{}
	reg := prometheus.NewRegistry()
	metrics := NewProducerMetrics(reg)
	p := NewProducerWithWriter(w, nil, metrics, quiet())

	ev, err := NewEvent("review.created", "review-1", "review", "vcreviews", map[string]string{"firmId": "f1"})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-7")

	require.NoError(t, p.Publish(ctx, "vcreviews.review.created", ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "vcreviews.review.created", msg.Topic)
	assert.Equal(t, "review-1", string(msg.Key))
	assert.Equal(t, "review.created", headerValue(msg, "event_type"))
	assert.Equal(t, "corr-7", headerValue(msg, "correlation_id"))
	assert.NotEmpty(t, headerValue(msg, "traceparent"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.EventID, decoded.EventID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.published.WithLabelValues("vcreviews.review.created")))
}

func TestProducer_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	metrics := NewProducerMetrics(nil)
	p := NewProducerWithWriter(w, nil, metrics, quiet())

	ev, _ := NewEvent("review.viewed", "user-1", "user", "vcreviews", struct{}{})
	err := p.Publish(context.Background(), "vcreviews.review.viewed", ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.errors.WithLabelValues("vcreviews.review.viewed")))
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := NewProducerWithWriter(&recordingWriter{}, nil, nil, quiet())
	assert.Error(t, p.Ping(context.Background()))
}

func TestProducer_Close(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, NewProducerWithWriter(w, nil, nil, quiet()).Close())
	assert.True(t, w.closed)
}
