package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/notification"
	"github.com/NordCoder/Healthwatch/internal/repository"
	"github.com/google/uuid"
)

var _ notification.Repo = (*Notifications)(nil)

type Notifications struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*notification.Notification
	now  func() time.Time
}

func NewNotifications() *Notifications {
	return &Notifications{
		byID: make(map[uuid.UUID]*notification.Notification),
		now:  time.Now,
	}
}

func (s *Notifications) Create(ctx context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Type == notification.TypeServiceDisruption {
		for _, cur := range s.byID {
			if cur.IsActive && cur.Type == n.Type && cur.Metadata.ServiceName == n.Metadata.ServiceName {
				return repository.ErrConflict
			}
		}
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := s.now().UTC()
	n.IsActive = true
	n.CreatedAt, n.UpdatedAt = now, now
	cp := *n
	s.byID[n.ID] = &cp
	return nil
}

func (s *Notifications) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[id]
	if !ok || !cur.IsActive {
		return repository.ErrNotFound
	}
	cur.IsActive = false
	cur.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Notifications) ListActive(ctx context.Context, typ string) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*notification.Notification
	for _, n := range s.byID {
		if n.IsActive && n.Type == typ {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Get returns a copy of the stored notification, active or not.
func (s *Notifications) Get(id uuid.UUID) (*notification.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}
