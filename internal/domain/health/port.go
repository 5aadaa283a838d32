package health

import (
	"context"
	"time"
)

type HistoryRepo interface {
	Insert(ctx context.Context, r *CheckResult) error
	ListByService(ctx context.Context, service string, limit int) ([]*CheckResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type Clock interface {
	Now() time.Time
}
