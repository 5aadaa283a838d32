package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// OutboxPolicy redelivers spooled events a few times within one runner tick.
func OutboxPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "outbox_event",
		Attempts: 3,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.2},
		Retryable: notCanceled,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox retries exhausted", zap.Error(err))
			}
		},
	}
}

// ConnectPolicy is one round of broker connect attempts; callers start another
// round when it is exhausted.
func ConnectPolicy(log *zap.Logger, attempts int) Policy {
	return Policy{
		Name:     "broker_connect",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: time.Second, Max: time.Minute, Jitter: 0.2},
		Retryable: notCanceled,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("broker connect failed", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("broker connect gave up", zap.Error(err))
			}
		},
	}
}
