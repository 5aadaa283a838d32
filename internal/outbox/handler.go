package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/outbox"
	"github.com/NordCoder/Healthwatch/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpooledEvent is a Kafka record that could not be written when it was produced.
type SpooledEvent struct {
	Topic string `json:"topic"`
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// EventWriter is satisfied by *kafka.Producer.
type EventWriter interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

var errNoTopic = errors.New("spooled event has no topic")

var (
	redeliveryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_redelivery_seconds",
		Help:    "Time spent redelivering one spooled record, retries included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	redeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_redelivery_failures_total",
		Help: "Spooled records still undelivered after retries.",
	}, []string{"kind"})
)

// MakeGlobalOutboxHandler routes spooled records back to the broker.
func MakeGlobalOutboxHandler(pub EventWriter, pol retry.Policy) outbox.GlobalHandler {
	events := withRetry("event", redeliverEvent(pub), pol)
	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		if kind == outbox.KindEvent {
			return events, nil
		}
		return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
	}
}

func redeliverEvent(pub EventWriter) outbox.KindHandler {
	return func(ctx context.Context, data []byte) error {
		var ev SpooledEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode spooled event: %w", err)
		}
		if ev.Topic == "" {
			return errNoTopic
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("messaging.destination.name", ev.Topic))
		return pub.Publish(ctx, ev.Topic, []byte(ev.Key), ev.Value)
	}
}

func withRetry(kind string, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	if pol.Name == "" {
		pol.Name = "outbox_" + kind
	}
	base := pol.Retryable
	pol.Retryable = func(err error) bool {
		if errors.Is(err, errNoTopic) {
			return false
		}
		if base == nil {
			return err != nil
		}
		return base(err)
	}
	tr := otel.Tracer("outbox.handler")
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.redeliver", trace.WithAttributes(attribute.String("outbox.kind", kind)))
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		redeliveryLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			redeliveryFailures.WithLabelValues(kind).Inc()
		}
		return err
	}
}
