package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/obs"
	"github.com/NordCoder/Healthwatch/internal/repository/memory"
	monitor "github.com/NordCoder/Healthwatch/internal/services/health-monitor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReadRoutes(t *testing.T) {
	ctx := context.Background()
	defs := []health.ServiceDefinition{{Name: "api", DisplayName: "API", URL: "http://api:8080", HealthPath: "/health"}}
	windows := monitor.NewSlidingWindowStore(defs, monitor.WindowConfig{})
	loop := &monitor.Loop{Windows: windows}

	history := memory.NewHistory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, history.Insert(ctx, &health.CheckResult{
			Service: "api", Status: health.StatusHealthy, Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	incidents := memory.NewIncidents()
	in := &incident.Incident{ServiceName: "api", Severity: health.StatusUnhealthy, StartedAt: base}
	require.NoError(t, incidents.Create(ctx, in))

	srv := httptest.NewServer(obs.NewMetricsRouter(nil, readRoutes(loop, history, incidents, zap.NewNop())...))
	defer srv.Close()

	get := func(path string, into any) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		if into != nil && resp.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
		}
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/status", nil))
	windows.EvaluateAndAggregate()
	var snap health.Snapshot
	require.Equal(t, http.StatusOK, get("/status", &snap))
	require.Len(t, snap.Services, 1)
	assert.Equal(t, "api", snap.Services[0].Service)

	var rows []health.CheckResult
	require.Equal(t, http.StatusOK, get("/services/api/history?limit=2", &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, base.Add(2*time.Minute), rows[0].Timestamp)

	var list []incident.Incident
	require.Equal(t, http.StatusOK, get("/services/api/incidents", &list))
	require.Len(t, list, 1)
	assert.Equal(t, in.ID, list[0].ID)

	var one incident.Incident
	require.Equal(t, http.StatusOK, get("/incidents/"+in.ID.String(), &one))
	assert.Equal(t, health.StatusUnhealthy, one.Severity)

	assert.Equal(t, http.StatusNotFound, get("/incidents/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusBadRequest, get("/incidents/not-a-uuid", nil))
}
