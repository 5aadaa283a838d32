package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// EnsureTopics creates the topics (ignoring "already exists") and waits until
// every one of them reports partitions, or maxWait elapses.
func EnsureTopics(ctx context.Context, brokers []string, specs []TopicSpec, maxWait time.Duration, log *zap.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka dial: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka dial controller: %w", err)
	}
	defer cc.Close()

	configs := make([]kafka.TopicConfig, 0, len(specs))
	for _, s := range specs {
		if s.NumPartitions <= 0 {
			s.NumPartitions = 1
		}
		if s.ReplicationFactor <= 0 {
			s.ReplicationFactor = 1
		}
		configs = append(configs, kafka.TopicConfig{
			Topic:             s.Name,
			NumPartitions:     s.NumPartitions,
			ReplicationFactor: s.ReplicationFactor,
		})
	}
	if err := cc.CreateTopics(configs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		log.Debug("create topics", zap.Error(err))
	}

	deadline := time.Now().Add(maxWait)
	for _, s := range specs {
		for {
			ps, err := conn.ReadPartitions(s.Name)
			if err == nil && len(ps) > 0 {
				log.Debug("topic ready", zap.String("topic", s.Name))
				break
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("topic %s not ready in %s", s.Name, maxWait)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
	return nil
}
