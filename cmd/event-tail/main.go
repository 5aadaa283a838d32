package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/Healthwatch/internal/config/health-monitor"
	"github.com/NordCoder/Healthwatch/internal/domain/events"
	"github.com/NordCoder/Healthwatch/internal/obs"
	"github.com/NordCoder/Healthwatch/internal/repository/kafka"
	"go.uber.org/zap"
)

// event-tail prints every event the monitor publishes. Handy for checking a
// deployment without a downstream consumer.
func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPath), "path to the YAML config")
	group := flag.String("group", "health-monitor-tail", "consumer group id")
	fromBeginning := flag.Bool("from-beginning", false, "start from the oldest retained event")
	flag.Parse()

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(obs.LogConfig{Level: cfg.Log.Level, Pretty: true, App: "event-tail", Env: cfg.App.Env, Ver: cfg.App.Version})
	if err != nil {
		log.Fatal(err)
	}
	defer obs.Sync(l)

	cons := kafka.NewConsumer(&kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		GroupID:       *group,
		Topics:        events.Topics,
		FromBeginning: *fromBeginning,
		Logger:        l,
	})
	defer func() { _ = cons.Close() }()

	h := kafka.JSONHandler(func(ctx context.Context, key []byte, env *events.Envelope) error {
		obs.WithTrace(ctx, l).Info("event",
			zap.String("type", env.EventType),
			zap.String("key", string(key)),
			zap.Stringer("event_id", env.EventID),
			zap.Time("at", env.Timestamp),
			zap.String("source", env.SourceService),
			zap.ByteString("payload", env.Payload))
		return nil
	})
	if err := cons.Consume(root, h); err != nil && !errors.Is(err, context.Canceled) {
		l.Error("consume", zap.Error(err))
	}
}
