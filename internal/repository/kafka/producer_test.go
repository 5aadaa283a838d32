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
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func withTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return rec
}

func TestProducer_PublishCarriesTopicKeyAndTrace(t *testing.T) {
	rec := withTracing(t)
	w := &memWriter{}
	p := NewProducerWithWriter(w)

	require.NoError(t, p.Publish(context.Background(), "system.health.service_unhealthy", []byte("api"), []byte(`{}`)))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "system.health.service_unhealthy", msg.Topic)
	assert.Equal(t, "api", string(msg.Key))
	assert.NotEmpty(t, headers{&msg.Headers}.Get("traceparent"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "kafka.produce system.health.service_unhealthy", spans[0].Name())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishError(t *testing.T) {
	w := &memWriter{err: errors.New("not enough replicas")}
	p := NewProducerWithWriter(w).WithLogger(nil)
	require.Error(t, p.Publish(context.Background(), "t", nil, nil))
}

func TestJSONHandler(t *testing.T) {
	type payload struct {
		Service string `json:"service"`
	}
	var got payload
	h := JSONHandler(func(_ context.Context, key []byte, p *payload) error {
		got = *p
		assert.Equal(t, "k", string(key))
		return nil
	})
	require.NoError(t, h(context.Background(), []byte("k"), []byte(`{"service":"api"}`)))
	assert.Equal(t, "api", got.Service)

	require.Error(t, h(context.Background(), []byte("k"), []byte(`not json`)))
}

func TestHeaders(t *testing.T) {
	var hs []kafka.Header
	h := headers{&hs}
	h.Set("traceparent", "00-abc-def-01")
	h.Set("traceparent", "00-abc-fed-01")
	h.Set("baggage", "tenant=a")

	require.Len(t, hs, 2)
	assert.Equal(t, "00-abc-fed-01", h.Get("traceparent"))
	assert.Equal(t, "", h.Get("missing"))
	assert.Equal(t, []string{"traceparent", "baggage"}, h.Keys())
}

func TestEnsureTopics_NoBrokers(t *testing.T) {
	require.Error(t, EnsureTopics(context.Background(), nil, []TopicSpec{{Name: "t"}}, 0, nil))
}
