package main

import (
	"context"

	config "github.com/NordCoder/Healthwatch/internal/config/health-monitor"
	"github.com/NordCoder/Healthwatch/internal/domain/events"
	"github.com/NordCoder/Healthwatch/internal/domain/outbox"
	intoutbox "github.com/NordCoder/Healthwatch/internal/outbox"
	"github.com/NordCoder/Healthwatch/internal/obs/retry"
	"github.com/NordCoder/Healthwatch/internal/repository/kafka"
	monitor "github.com/NordCoder/Healthwatch/internal/services/health-monitor"
	"go.uber.org/zap"
)

type noopWriter struct{}

func (noopWriter) Publish(context.Context, string, []byte, []byte) error { return nil }

func topicBinder(cfg *config.Config, l *zap.Logger) monitor.TopicBinder {
	specs := make([]kafka.TopicSpec, 0, len(events.Topics))
	for _, t := range events.Topics {
		specs = append(specs, kafka.TopicSpec{
			Name:              t,
			NumPartitions:     cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		})
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.Kafka.ConnectTimeout)
		defer cancel()
		return kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, specs, cfg.Kafka.ConnectTimeout, l)
	}
}

// initEvents returns the publisher, the producer to close on shutdown (nil
// when the bus is disabled) and the outbox runner (nil without a spool).
func initEvents(ctx context.Context, cfg *config.Config, spool outbox.Repository, l *zap.Logger) (*monitor.EventPublisher, *kafka.Producer, *intoutbox.Runner) {
	if !cfg.Kafka.Enable {
		l.Warn("event bus disabled, transitions are only logged")
		return monitor.NewEventPublisher(noopWriter{}, nil, nil, cfg.App.Name, l), nil, nil
	}

	prod := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		WriteTimeout: cfg.Kafka.WriteTimeout,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		MaxAttempts:  cfg.Kafka.MaxAttempts,
	}).WithLogger(l)

	pub := monitor.NewEventPublisher(prod, topicBinder(cfg, l), spool, cfg.App.Name, l)
	if err := pub.Connect(ctx); err != nil {
		l.Warn("event bus unavailable, retrying in background", zap.Error(err))
		pub.ConnectInBackground(ctx, retry.ConnectPolicy(l, cfg.Kafka.ConnectAttempts))
	}

	var runner *intoutbox.Runner
	if spool != nil {
		runner = intoutbox.NewOutboxRunner(l, spool,
			intoutbox.MakeGlobalOutboxHandler(prod, retry.OutboxPolicy(l)),
			cfg.Outbox.Workers, cfg.Outbox.BatchSize, cfg.Outbox.Wait, cfg.Outbox.InProgressTTL)
	}
	return pub, prod, runner
}
