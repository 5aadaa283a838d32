package health_monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IncidentManager tracks one open incident per non-healthy service. The
// service→incident map is a cache of durable state: it only advances after
// a successful write and is re-read every cycle by Reconcile.
type IncidentManager struct {
	repo  incident.Repo
	clock health.Clock
	log   *zap.Logger

	mu     sync.Mutex
	active map[string]uuid.UUID
}

func NewIncidentManager(repo incident.Repo, clock health.Clock, log *zap.Logger) *IncidentManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &IncidentManager{
		repo:   repo,
		clock:  clock,
		log:    log.With(zap.String("component", "incident_manager")),
		active: make(map[string]uuid.UUID),
	}
}

func (m *IncidentManager) Initialize(ctx context.Context) error {
	list, err := m.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load active incidents: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = make(map[string]uuid.UUID, len(list))
	for _, in := range list {
		m.active[in.ServiceName] = in.ID
	}
	m.log.Info("active incidents loaded", zap.Int("count", len(list)))
	return nil
}

// Reconcile adopts active incidents missing from the cache and drops cached
// ones that are no longer active in storage.
func (m *IncidentManager) Reconcile(ctx context.Context) error {
	list, err := m.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active incidents: %w", err)
	}
	durable := make(map[string]uuid.UUID, len(list))
	for _, in := range list {
		durable[in.ServiceName] = in.ID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for svc, id := range durable {
		if cur, ok := m.active[svc]; !ok || cur != id {
			m.log.Info("incident adopted", zap.String("service", svc), zap.Stringer("incident_id", id))
			m.active[svc] = id
		}
	}
	for svc, id := range m.active {
		if _, ok := durable[svc]; !ok {
			m.log.Info("stale incident dropped", zap.String("service", svc), zap.Stringer("incident_id", id))
			delete(m.active, svc)
		}
	}
	return nil
}

func (m *IncidentManager) ActiveID(service string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[service]
	return id, ok
}

func (m *IncidentManager) ProcessStatusChanges(ctx context.Context, statuses []health.ServiceStatus) []incident.Transition {
	var out []incident.Transition
	for _, st := range statuses {
		if tr, ok := m.process(ctx, st); ok {
			out = append(out, tr)
		}
	}
	return out
}

func (m *IncidentManager) process(ctx context.Context, st health.ServiceStatus) (incident.Transition, bool) {
	id, active := m.ActiveID(st.Service)
	log := m.log.With(zap.String("service", st.Service))

	switch {
	case !st.Status.IsHealthy() && !active:
		return m.open(ctx, st, log)

	case !st.Status.IsHealthy() && active:
		m.update(ctx, id, st, log)
		return incident.Transition{}, false

	case st.Status.IsHealthy() && active:
		return m.resolve(ctx, id, st, log)
	}
	return incident.Transition{}, false
}

func (m *IncidentManager) open(ctx context.Context, st health.ServiceStatus, log *zap.Logger) (incident.Transition, bool) {
	now := m.clock.Now().UTC()
	in := &incident.Incident{
		ID:           uuid.New(),
		ServiceName:  st.Service,
		Severity:     st.Status,
		StartedAt:    now,
		ErrorDetails: detailsOf(st),
	}
	err := m.repo.Create(ctx, in)
	if errors.Is(err, repository.ErrConflict) {
		m.adopt(ctx, st, log)
		return incident.Transition{}, false
	}
	if err != nil {
		log.Error("create incident", zap.Error(err))
		return incident.Transition{}, false
	}

	m.mu.Lock()
	m.active[st.Service] = in.ID
	m.mu.Unlock()

	tr := incident.Transition{
		Kind:        incident.TransitionOpened,
		Service:     st.Service,
		DisplayName: st.DisplayName,
		Status:      st.Status,
		IncidentID:  in.ID,
		Error:       st.Error,
		At:          now,
	}
	log.Warn("incident opened", zap.Stringer("incident_id", in.ID), zap.String("transition", tr.String()))
	return tr, true
}

// adopt handles a create that lost a race: the open incident written by
// another writer becomes ours and is updated in place.
func (m *IncidentManager) adopt(ctx context.Context, st health.ServiceStatus, log *zap.Logger) {
	list, err := m.repo.ListByService(ctx, st.Service, 1)
	if err != nil {
		log.Error("load conflicting incident", zap.Error(err))
		return
	}
	if len(list) == 0 || !list[0].Active() {
		log.Warn("conflicting incident vanished")
		return
	}
	m.mu.Lock()
	m.active[st.Service] = list[0].ID
	m.mu.Unlock()
	log.Info("incident adopted", zap.Stringer("incident_id", list[0].ID))
	m.update(ctx, list[0].ID, st, log)
}

func (m *IncidentManager) update(ctx context.Context, id uuid.UUID, st health.ServiceStatus, log *zap.Logger) {
	err := m.repo.Update(ctx, &incident.Incident{
		ID:           id,
		ServiceName:  st.Service,
		Severity:     st.Status,
		ErrorDetails: detailsOf(st),
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// resolved elsewhere; storage wins
		m.forget(st.Service, id)
		log.Warn("cached incident no longer active", zap.Stringer("incident_id", id))
	case err != nil:
		log.Error("update incident", zap.Stringer("incident_id", id), zap.Error(err))
	}
}

func (m *IncidentManager) resolve(ctx context.Context, id uuid.UUID, st health.ServiceStatus, log *zap.Logger) (incident.Transition, bool) {
	now := m.clock.Now().UTC()
	err := m.repo.Resolve(ctx, id, now)
	if errors.Is(err, repository.ErrNotFound) {
		m.forget(st.Service, id)
		log.Warn("incident already resolved", zap.Stringer("incident_id", id))
		return incident.Transition{}, false
	}
	if err != nil {
		log.Error("resolve incident", zap.Stringer("incident_id", id), zap.Error(err))
		return incident.Transition{}, false
	}
	m.forget(st.Service, id)

	tr := incident.Transition{
		Kind:        incident.TransitionResolved,
		Service:     st.Service,
		DisplayName: st.DisplayName,
		Status:      st.Status,
		IncidentID:  id,
		At:          now,
	}
	log.Info("incident resolved", zap.Stringer("incident_id", id), zap.String("transition", tr.String()))
	return tr, true
}

func (m *IncidentManager) forget(service string, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[service] == id {
		delete(m.active, service)
	}
}

func detailsOf(st health.ServiceStatus) incident.Details {
	return incident.Details{Error: st.Error, RecentResults: st.RecentResults}
}
