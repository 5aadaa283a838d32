package incident

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repo interface {
	Create(ctx context.Context, in *Incident) error
	Update(ctx context.Context, in *Incident) error
	Resolve(ctx context.Context, id uuid.UUID, at time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*Incident, error)
	ListActive(ctx context.Context) ([]*Incident, error)
	ListByService(ctx context.Context, service string, limit int) ([]*Incident, error)
}
