package health_monitor

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/domain/notification"
	"github.com/NordCoder/Healthwatch/internal/repository/memory"
	"github.com/google/uuid"
)

type published struct {
	Type    string
	Key     string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Type: eventType, Key: key, Payload: payload})
	return p.err
}

func (p *recordingPublisher) ofType(t string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// flakyIncidents fails the selected operations while the flag is set.
type flakyIncidents struct {
	*memory.Incidents
	failCreate, failUpdate, failResolve, failList error
}

func (f *flakyIncidents) Create(ctx context.Context, in *incident.Incident) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	return f.Incidents.Create(ctx, in)
}

func (f *flakyIncidents) Update(ctx context.Context, in *incident.Incident) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	return f.Incidents.Update(ctx, in)
}

func (f *flakyIncidents) Resolve(ctx context.Context, id uuid.UUID, at time.Time) error {
	if f.failResolve != nil {
		return f.failResolve
	}
	return f.Incidents.Resolve(ctx, id, at)
}

func (f *flakyIncidents) ListActive(ctx context.Context) ([]*incident.Incident, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	return f.Incidents.ListActive(ctx)
}

type flakyNotifications struct {
	*memory.Notifications
	failCreate, failDeactivate error
}

func (f *flakyNotifications) Create(ctx context.Context, n *notification.Notification) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	return f.Notifications.Create(ctx, n)
}

func (f *flakyNotifications) Deactivate(ctx context.Context, id uuid.UUID) error {
	if f.failDeactivate != nil {
		return f.failDeactivate
	}
	return f.Notifications.Deactivate(ctx, id)
}

func svcStatus(name string, st health.Status) health.ServiceStatus {
	return health.ServiceStatus{Service: name, DisplayName: name + "-display", Status: st}
}
