package events

import "context"

type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}
