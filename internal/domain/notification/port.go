package notification

import (
	"context"

	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, n *Notification) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context, typ string) ([]*Notification, error)
}
