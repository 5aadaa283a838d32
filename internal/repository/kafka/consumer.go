package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/NordCoder/Healthwatch/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, key, value []byte) error

var consumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_consumed_messages_total",
	Help: "Messages fetched by event consumers, by topic and handler outcome.",
}, []string{"topic", "result"})

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topics        []string
	FromBeginning bool
	Logger        *zap.Logger
}

// Consumer reads a set of topics as one group and commits only handled messages.
type Consumer struct {
	reader  *kafka.Reader
	log     *zap.Logger
	backoff retry.Backoff
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	l := cfg.Logger
	if l == nil {
		l = zap.L()
	}
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		GroupTopics:           cfg.Topics,
		StartOffset:           start,
		WatchPartitionChanges: true,
		MinBytes:              1,
		MaxBytes:              1 << 20,
		SessionTimeout:        10 * time.Second,
		RebalanceTimeout:      15 * time.Second,
		HeartbeatInterval:     3 * time.Second,
	})

	return &Consumer{
		reader: r,
		log: l.With(
			zap.String("component", "kafka.consumer"),
			zap.Strings("topics", cfg.Topics),
			zap.String("group", cfg.GroupID),
		),
		backoff: retry.ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.1},
	}
}

// Consume blocks until ctx ends. Handler errors are logged and the message
// is left uncommitted; fetch errors back off exponentially.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Info("consumer started")
	defer c.log.Info("consumer stopped")

	tr := otel.Tracer("kafka.consumer")
	prop := otel.GetTextMapPropagator()

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := c.backoff.Next(failures)
			failures++
			if errors.Is(err, io.EOF) {
				c.log.Debug("fetch EOF", zap.Duration("backoff", wait))
			} else {
				c.log.Warn("fetch failed", zap.Error(err), zap.Duration("backoff", wait))
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		failures = 0

		msgCtx := prop.Extract(ctx, headers{&msg.Headers})
		msgCtx, span := tr.Start(msgCtx, "kafka.consume "+msg.Topic,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				semconv.MessagingSystemKafka,
				semconv.MessagingDestinationName(msg.Topic),
				attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			),
		)
		err = h(msgCtx, msg.Key, msg.Value)
		if err != nil {
			span.RecordError(err)
			span.End()
			consumed.WithLabelValues(msg.Topic, "error").Inc()
			c.log.Error("handler error",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		span.End()
		consumed.WithLabelValues(msg.Topic, "ok").Inc()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("commit failed", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
