package health_monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/events"
	"github.com/NordCoder/Healthwatch/internal/domain/outbox"
	"github.com/NordCoder/Healthwatch/internal/obs/retry"
	intoutbox "github.com/NordCoder/Healthwatch/internal/outbox"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var mPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "health_monitor_events_total",
	Help: "Events handed to the bus by type and result (ok, spooled, skipped, failed).",
}, []string{"type", "result"})

var _ events.Publisher = (*EventPublisher)(nil)

// TopicBinder makes sure the event topics exist on the broker.
type TopicBinder func(ctx context.Context) error

// EventPublisher wraps payloads in an envelope and writes them to the topic
// named after the event type. Delivery problems are never returned to the
// monitoring loop as long as the event could be spooled.
//
// Besides the incident types (system.health.service_unhealthy and
// system.health.service_recovered) the notification manager publishes
// system.notification.service_disruption and
// system.notification.service_disruption_resolved; events.Topics lists all four.
type EventPublisher struct {
	w      intoutbox.EventWriter
	bind   TopicBinder
	spool  outbox.Repository
	source string
	log    *zap.Logger
	now    func() time.Time

	connected atomic.Bool
}

func NewEventPublisher(w intoutbox.EventWriter, bind TopicBinder, spool outbox.Repository, source string, log *zap.Logger) *EventPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventPublisher{
		w:      w,
		bind:   bind,
		spool:  spool,
		source: source,
		log:    log.With(zap.String("component", "event_publisher")),
		now:    time.Now,
	}
}

func (p *EventPublisher) Connect(ctx context.Context) error {
	if p.connected.Load() {
		return nil
	}
	if p.bind != nil {
		if err := p.bind(ctx); err != nil {
			return fmt.Errorf("bind event topics: %w", err)
		}
	}
	p.connected.Store(true)
	p.log.Info("event bus connected")
	return nil
}

// ConnectInBackground keeps calling Connect until it succeeds or ctx ends.
// pol bounds one round of attempts; an exhausted round starts over with a
// fresh backoff, so a broker that comes back late is still picked up.
// The channel yields nil on success or ctx.Err().
func (p *EventPublisher) ConnectInBackground(ctx context.Context, pol retry.Policy) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		for round := 1; ; round++ {
			err := retry.Do(ctx, func() error { return p.Connect(ctx) }, pol)
			if err == nil {
				done <- nil
				return
			}
			if ctx.Err() != nil {
				done <- ctx.Err()
				return
			}
			pause := time.Second
			if pol.Backoff != nil {
				pause = pol.Backoff.Next(max(pol.Attempts-1, 0))
			}
			p.log.Warn("event bus still unreachable, retrying",
				zap.Int("round", round), zap.Duration("pause", pause), zap.Error(err))
			t := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				t.Stop()
				done <- ctx.Err()
				return
			case <-t.C:
			}
		}
	}()
	return done
}

func (p *EventPublisher) Connected() bool { return p.connected.Load() }

func (p *EventPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	log := p.log.With(zap.String("event_type", eventType), zap.String("key", key))
	if !p.connected.Load() {
		mPublished.WithLabelValues(eventType, "skipped").Inc()
		log.Warn("event bus not connected, event dropped")
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := events.Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		Timestamp:     p.now().UTC(),
		SourceService: p.source,
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	pubErr := p.w.Publish(ctx, eventType, []byte(key), value)
	if pubErr == nil {
		mPublished.WithLabelValues(eventType, "ok").Inc()
		log.Debug("event published", zap.Stringer("event_id", env.EventID))
		return nil
	}

	if p.spool == nil {
		mPublished.WithLabelValues(eventType, "failed").Inc()
		log.Warn("event publish failed", zap.Error(pubErr))
		return fmt.Errorf("publish %s: %w", eventType, pubErr)
	}

	data, err := json.Marshal(intoutbox.SpooledEvent{Topic: eventType, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encode spooled event: %w", err)
	}
	if err := p.spool.Enqueue(ctx, env.EventID.String(), outbox.KindEvent, data); err != nil {
		mPublished.WithLabelValues(eventType, "failed").Inc()
		log.Error("event publish and spool failed", zap.NamedError("publish_error", pubErr), zap.Error(err))
		return fmt.Errorf("spool %s: %w", eventType, err)
	}
	mPublished.WithLabelValues(eventType, "spooled").Inc()
	log.Warn("event publish failed, spooled to outbox", zap.Stringer("event_id", env.EventID), zap.Error(pubErr))
	return nil
}
