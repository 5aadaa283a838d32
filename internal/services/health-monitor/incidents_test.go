package health_monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newIncidents(t *testing.T) (*IncidentManager, *flakyIncidents, *fakeClock) {
	t.Helper()
	repo := &flakyIncidents{Incidents: memory.NewIncidents()}
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := NewIncidentManager(repo, clock, zap.NewNop())
	require.NoError(t, m.Initialize(context.Background()))
	return m, repo, clock
}

func TestIncidentManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m, repo, clock := newIncidents(t)

	st := svcStatus("api", U)
	st.Error = "connection refused"
	trs := m.ProcessStatusChanges(ctx, []health.ServiceStatus{st, svcStatus("db", H)})
	require.Len(t, trs, 1)
	assert.Equal(t, incident.TransitionOpened, trs[0].Kind)
	assert.Equal(t, "healthy → unhealthy", trs[0].String())
	assert.Equal(t, "connection refused", trs[0].Error)
	firstID := trs[0].IncidentID

	got, err := repo.GetByID(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, U, got.Severity)
	assert.Equal(t, "connection refused", got.ErrorDetails.Error)

	// sustained outage updates in place
	clock.Advance(15 * time.Second)
	trs = m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", D)})
	assert.Empty(t, trs)
	got, err = repo.GetByID(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, D, got.Severity)
	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	clock.Advance(15 * time.Second)
	trs = m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", H)})
	require.Len(t, trs, 1)
	assert.Equal(t, incident.TransitionResolved, trs[0].Kind)
	assert.Equal(t, "incident → healthy", trs[0].String())
	assert.Equal(t, firstID, trs[0].IncidentID)
	_, ok := m.ActiveID("api")
	assert.False(t, ok)

	got, err = repo.GetByID(ctx, firstID)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, clock.Now(), *got.ResolvedAt)

	// healthy with nothing open is a no-op
	assert.Empty(t, m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", H)}))

	// recurrence gets a fresh id
	trs = m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)})
	require.Len(t, trs, 1)
	assert.NotEqual(t, firstID, trs[0].IncidentID)
}

func TestIncidentManager_FailedWritesLeaveMapUntouched(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newIncidents(t)

	repo.failCreate = errors.New("db down")
	assert.Empty(t, m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)}))
	_, ok := m.ActiveID("api")
	assert.False(t, ok)

	repo.failCreate = nil
	trs := m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)})
	require.Len(t, trs, 1)
	id := trs[0].IncidentID

	repo.failResolve = errors.New("db down")
	assert.Empty(t, m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", H)}))
	cur, ok := m.ActiveID("api")
	require.True(t, ok)
	assert.Equal(t, id, cur)

	repo.failResolve = nil
	trs = m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", H)})
	require.Len(t, trs, 1)
	assert.Equal(t, id, trs[0].IncidentID)
}

func TestIncidentManager_InitializeRestoresActive(t *testing.T) {
	ctx := context.Background()
	m, repo, _ := newIncidents(t)
	trs := m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)})
	require.Len(t, trs, 1)

	restarted := NewIncidentManager(repo, &fakeClock{t: time.Now()}, zap.NewNop())
	require.NoError(t, restarted.Initialize(ctx))
	id, ok := restarted.ActiveID("api")
	require.True(t, ok)
	assert.Equal(t, trs[0].IncidentID, id)

	// still down after restart: no duplicate incident
	assert.Empty(t, restarted.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)}))
	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestIncidentManager_InitializeFails(t *testing.T) {
	repo := &flakyIncidents{Incidents: memory.NewIncidents(), failList: errors.New("db down")}
	m := NewIncidentManager(repo, &fakeClock{}, zap.NewNop())
	require.Error(t, m.Initialize(context.Background()))
}

func TestIncidentManager_ConflictAdoptsExisting(t *testing.T) {
	ctx := context.Background()
	m, repo, clock := newIncidents(t)

	other := &incident.Incident{ServiceName: "api", Severity: D, StartedAt: clock.Now()}
	require.NoError(t, repo.Create(ctx, other))

	assert.Empty(t, m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)}))
	id, ok := m.ActiveID("api")
	require.True(t, ok)
	assert.Equal(t, other.ID, id)

	got, err := repo.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, U, got.Severity)
}

func TestIncidentManager_Reconcile(t *testing.T) {
	ctx := context.Background()
	m, repo, clock := newIncidents(t)

	trs := m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)})
	require.Len(t, trs, 1)

	// resolved by someone else, and a new one opened behind our back
	require.NoError(t, repo.Resolve(ctx, trs[0].IncidentID, clock.Now()))
	foreign := &incident.Incident{ServiceName: "db", Severity: U, StartedAt: clock.Now()}
	require.NoError(t, repo.Create(ctx, foreign))

	require.NoError(t, m.Reconcile(ctx))
	_, ok := m.ActiveID("api")
	assert.False(t, ok)
	id, ok := m.ActiveID("db")
	require.True(t, ok)
	assert.Equal(t, foreign.ID, id)

	// db recovering resolves the adopted incident
	trs = m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("db", H)})
	require.Len(t, trs, 1)
	assert.Equal(t, foreign.ID, trs[0].IncidentID)
}

func TestIncidentManager_UpdateOfVanishedIncident(t *testing.T) {
	ctx := context.Background()
	m, repo, clock := newIncidents(t)

	trs := m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)})
	require.Len(t, trs, 1)
	require.NoError(t, repo.Resolve(ctx, trs[0].IncidentID, clock.Now()))

	assert.Empty(t, m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)}))
	_, ok := m.ActiveID("api")
	assert.False(t, ok)

	trs = m.ProcessStatusChanges(ctx, []health.ServiceStatus{svcStatus("api", U)})
	require.Len(t, trs, 1)
}
