package health_monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/NordCoder/Healthwatch/internal/domain/events"
	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/notification"
	"github.com/NordCoder/Healthwatch/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// NotificationManager keeps at most one active disruption notification per
// service. The cache is advisory; CleanupHealthyServices re-derives it from
// storage every cycle.
type NotificationManager struct {
	repo notification.Repo
	pub  events.Publisher
	log  *zap.Logger

	mu     sync.Mutex
	active map[string]uuid.UUID
}

func NewNotificationManager(repo notification.Repo, pub events.Publisher, log *zap.Logger) *NotificationManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationManager{
		repo:   repo,
		pub:    pub,
		log:    log.With(zap.String("component", "notification_manager")),
		active: make(map[string]uuid.UUID),
	}
}

func (m *NotificationManager) Initialize(ctx context.Context) error {
	list, err := m.repo.ListActive(ctx, notification.TypeServiceDisruption)
	if err != nil {
		return fmt.Errorf("load active notifications: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = make(map[string]uuid.UUID, len(list))
	for _, n := range list {
		if _, dup := m.active[n.Metadata.ServiceName]; dup {
			continue
		}
		m.active[n.Metadata.ServiceName] = n.ID
	}
	m.log.Info("active notifications loaded", zap.Int("count", len(list)))
	return nil
}

func (m *NotificationManager) ActiveID(service string) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[service]
	return id, ok
}

// OnServiceUnhealthy creates the disruption notification for st unless one is already active.
func (m *NotificationManager) OnServiceUnhealthy(ctx context.Context, st health.ServiceStatus) error {
	if _, ok := m.ActiveID(st.Service); ok {
		return nil
	}

	n := &notification.Notification{
		ID:          uuid.New(),
		Type:        notification.TypeServiceDisruption,
		Severity:    notification.SeverityFor(st.Status),
		Source:      notification.SourceHealthMonitor,
		Title:       disruptionTitle(st),
		Message:     disruptionMessage(st),
		IsActive:    true,
		Dismissible: false,
		Metadata: notification.Metadata{
			ServiceName: st.Service,
			DisplayName: st.DisplayName,
			Error:       st.Error,
		},
	}
	err := m.repo.Create(ctx, n)
	if errors.Is(err, repository.ErrConflict) {
		// another writer got there first; the sweep adopts its record
		m.log.Info("disruption notification already exists", zap.String("service", st.Service))
		return nil
	}
	if err != nil {
		return fmt.Errorf("create notification for %s: %w", st.Service, err)
	}

	m.mu.Lock()
	m.active[st.Service] = n.ID
	m.mu.Unlock()
	m.log.Warn("disruption notification created",
		zap.String("service", st.Service), zap.Stringer("notification_id", n.ID), zap.String("severity", string(n.Severity)))

	return m.pub.Publish(ctx, events.TypeDisruptionOpened, st.Service, events.DisruptionPayload{
		NotificationID: n.ID,
		Service:        st.Service,
		DisplayName:    st.DisplayName,
		Severity:       string(n.Severity),
		Title:          n.Title,
		Message:        n.Message,
	})
}

// OnServiceRecovered deactivates the cached notification for service, if any.
func (m *NotificationManager) OnServiceRecovered(ctx context.Context, service, displayName string) error {
	id, ok := m.ActiveID(service)
	if !ok {
		return nil
	}
	err := m.repo.Deactivate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		m.forget(service, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("deactivate notification %s: %w", id, err)
	}
	m.forget(service, id)
	m.log.Info("disruption notification resolved", zap.String("service", service), zap.Stringer("notification_id", id))

	return m.pub.Publish(ctx, events.TypeDisruptionResolved, service, events.DisruptionPayload{
		NotificationID: id,
		Service:        service,
		DisplayName:    displayName,
	})
}

// CleanupHealthyServices reads every active disruption from storage and
// deactivates those whose service is healthy. Active records for other
// services are adopted into the cache, duplicates beyond the first are
// deactivated, and cache entries unknown to storage are dropped.
func (m *NotificationManager) CleanupHealthyServices(ctx context.Context, healthy []string) error {
	list, err := m.repo.ListActive(ctx, notification.TypeServiceDisruption)
	if err != nil {
		return fmt.Errorf("list active notifications: %w", err)
	}

	isHealthy := make(map[string]bool, len(healthy))
	for _, name := range healthy {
		isHealthy[name] = true
	}

	m.mu.Lock()
	cached := make(map[string]uuid.UUID, len(m.active))
	for k, v := range m.active {
		cached[k] = v
	}
	m.mu.Unlock()

	var errs error
	keep := make(map[string]uuid.UUID)
	for _, n := range list {
		svc := n.Metadata.ServiceName
		log := m.log.With(zap.String("service", svc), zap.Stringer("notification_id", n.ID))

		if isHealthy[svc] {
			if err := m.repo.Deactivate(ctx, n.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				errs = multierr.Append(errs, fmt.Errorf("deactivate orphan %s: %w", n.ID, err))
				continue
			}
			log.Info("orphaned notification deactivated")
			continue
		}

		if cur, ok := keep[svc]; ok && cur != n.ID {
			drop := n.ID
			if cached[svc] == n.ID {
				drop, keep[svc] = cur, n.ID
			}
			if err := m.repo.Deactivate(ctx, drop); err != nil && !errors.Is(err, repository.ErrNotFound) {
				errs = multierr.Append(errs, fmt.Errorf("deactivate duplicate %s: %w", drop, err))
				continue
			}
			log.Warn("duplicate notification deactivated", zap.Stringer("duplicate_id", drop))
			continue
		}
		keep[svc] = n.ID
	}

	m.mu.Lock()
	for svc, id := range keep {
		if m.active[svc] != id {
			m.log.Info("notification adopted", zap.String("service", svc), zap.Stringer("notification_id", id))
		}
	}
	m.active = keep
	m.mu.Unlock()
	return errs
}

func (m *NotificationManager) forget(service string, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[service] == id {
		delete(m.active, service)
	}
}

func disruptionTitle(st health.ServiceStatus) string {
	if st.Status == health.StatusDegraded {
		return fmt.Sprintf("%s is degraded", nameOf(st))
	}
	return fmt.Sprintf("%s is unavailable", nameOf(st))
}

func disruptionMessage(st health.ServiceStatus) string {
	msg := fmt.Sprintf("We are seeing problems with %s. Some features may not work as expected.", nameOf(st))
	if st.Status == health.StatusDegraded {
		msg = fmt.Sprintf("%s is responding slower than usual or with reduced functionality.", nameOf(st))
	}
	return msg
}

func nameOf(st health.ServiceStatus) string {
	if st.DisplayName != "" {
		return st.DisplayName
	}
	return st.Service
}
