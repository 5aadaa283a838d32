package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/repository"
	"github.com/google/uuid"
)

var _ incident.Repo = (*Incidents)(nil)

// Incidents mirrors the Postgres constraint of one open incident per service.
type Incidents struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*incident.Incident
	now  func() time.Time
}

func NewIncidents() *Incidents {
	return &Incidents{
		byID: make(map[uuid.UUID]*incident.Incident),
		now:  time.Now,
	}
}

func (s *Incidents) Create(ctx context.Context, in *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.byID {
		if cur.ServiceName == in.ServiceName && cur.Active() {
			return repository.ErrConflict
		}
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	in.UpdatedAt = s.now().UTC()
	cp := *in
	s.byID[in.ID] = &cp
	return nil
}

func (s *Incidents) Update(ctx context.Context, in *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[in.ID]
	if !ok || !cur.Active() {
		return repository.ErrNotFound
	}
	cur.Severity = in.Severity
	cur.ErrorDetails = in.ErrorDetails
	cur.UpdatedAt = s.now().UTC()
	in.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *Incidents) Resolve(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[id]
	if !ok || !cur.Active() {
		return repository.ErrNotFound
	}
	resolved := at
	cur.ResolvedAt = &resolved
	cur.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Incidents) GetByID(ctx context.Context, id uuid.UUID) (*incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *cur
	return &cp, nil
}

func (s *Incidents) ListActive(ctx context.Context) ([]*incident.Incident, error) {
	return s.list(func(in *incident.Incident) bool { return in.Active() }, 0), nil
}

func (s *Incidents) ListByService(ctx context.Context, service string, limit int) ([]*incident.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	out := s.list(func(in *incident.Incident) bool { return in.ServiceName == service }, limit)
	return out, nil
}

// list returns matching copies; newest first when limited, oldest first otherwise.
func (s *Incidents) list(match func(*incident.Incident) bool, limit int) []*incident.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*incident.Incident, 0, len(s.byID))
	for _, in := range s.byID {
		if match(in) {
			cp := *in
			out = append(out, &cp)
		}
	}
	if limit <= 0 {
		sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
		return out
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
