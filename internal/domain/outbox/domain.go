// Package outbox describes the spool for events that could not reach the
// broker when they were produced. Records are redelivered at least once and
// deduplicated by IdempotencyKey.
package outbox

import (
	"context"
	"fmt"
	"time"
)

// Status is the delivery state stored with each record.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
)

// Kind selects the handler that redelivers a record.
type Kind int

const (
	KindEvent Kind = 1
)

func (k Kind) String() string {
	if k == KindEvent {
		return "event"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is one spooled record plus the W3C trace headers captured when it
// was enqueued.
type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Traceparent    string
	Tracestate     string
	Baggage        string
}

// TraceHeaders returns the captured headers in propagator form; empty values are omitted.
func (m Message) TraceHeaders() map[string]string {
	h := make(map[string]string, 3)
	for k, v := range map[string]string{"traceparent": m.Traceparent, "tracestate": m.Tracestate, "baggage": m.Baggage} {
		if v != "" {
			h[k] = v
		}
	}
	return h
}

// Repository is the durable spool. PickBatch claims records; a claim older
// than inProgressTTL is considered abandoned and handed out again.
type Repository interface {
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)
	MarkSuccess(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

// GlobalHandler resolves the handler for a kind, or an error for unknown kinds.
type GlobalHandler func(kind Kind) (KindHandler, error)
