package memory

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
)

var _ health.HistoryRepo = (*History)(nil)

type History struct {
	mu      sync.RWMutex
	results []*health.CheckResult
}

func NewHistory() *History {
	return &History{results: make([]*health.CheckResult, 0, 128)}
}

func (s *History) Insert(ctx context.Context, r *health.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.results = append(s.results, &cp)
	return nil
}

func (s *History) ListByService(ctx context.Context, service string, limit int) ([]*health.CheckResult, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*health.CheckResult, 0, limit)
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		if s.results[i].Service == service {
			cp := *s.results[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *History) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.results[:0]
	var removed int64
	for _, r := range s.results {
		if r.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.results = kept
	return removed, nil
}

func (s *History) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
