package health_monitor

import (
	"testing"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	H = health.StatusHealthy
	D = health.StatusDegraded
	U = health.StatusUnhealthy
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWindows(clock *fakeClock, services ...string) *SlidingWindowStore {
	defs := make([]health.ServiceDefinition, len(services))
	for i, s := range services {
		defs[i] = health.ServiceDefinition{Name: s, DisplayName: s}
	}
	w := NewSlidingWindowStore(defs, WindowConfig{Interval: 15 * time.Second})
	w.now = clock.Now
	return w
}

func push(w *SlidingWindowStore, clock *fakeClock, svc string, statuses ...health.Status) {
	for _, st := range statuses {
		w.PushResult(health.CheckResult{Service: svc, Status: st, Timestamp: clock.Now()})
		clock.Advance(time.Second)
	}
}

func TestEvaluateService_CountBased(t *testing.T) {
	cases := []struct {
		name   string
		window []health.Status
		want   health.Status
	}{
		{"empty", nil, H},
		{"all healthy", []health.Status{H, H, H, H, H}, H},
		{"two blips", []health.Status{U, H, U, H, H}, H},
		{"three scattered", []health.Status{U, H, U, H, U}, U},
		{"three degraded", []health.Status{D, D, H, D, H}, D},
		{"unhealthy wins over degraded", []health.Status{D, U, D, U, D, U}, U},
		{"two each", []health.Status{D, U, D, U, H}, H},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
			w := newTestWindows(clock, "api")
			push(w, clock, "api", tc.window...)
			assert.Equal(t, tc.want, w.EvaluateService("api"))
		})
	}
}

func TestPushResult_KeepsMostRecentK(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	w := newTestWindows(clock, "api")
	push(w, clock, "api", U, U, U, H, H, H, H)

	got := w.Results("api")
	require.Len(t, got, 5)
	assert.Equal(t, []health.Status{U, H, H, H, H}, statuses(got))
	assert.Equal(t, H, w.EvaluateService("api"))
}

func TestPushResult_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	w := newTestWindows(clock, "api")
	push(w, clock, "api", U, U, U)
	require.Equal(t, U, w.EvaluateService("api"))

	clock.Advance(6 * time.Minute)
	assert.Empty(t, w.Results("api"))
	assert.Equal(t, H, w.EvaluateService("api"))

	push(w, clock, "api", U)
	assert.Len(t, w.Results("api"), 1)
}

func TestEvaluateAndAggregate_WorstCase(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	w := newTestWindows(clock, "api", "db", "queue")
	push(w, clock, "api", H, H, H)
	push(w, clock, "db", D, D, D)
	w.PushResult(health.CheckResult{Service: "queue", Status: H, ResponseTimeMs: 42, Timestamp: clock.Now(), Error: ""})

	snap := w.EvaluateAndAggregate()
	assert.Equal(t, D, snap.Status)
	assert.Equal(t, int64(15000), snap.CheckIntervalMs)
	require.Len(t, snap.Services, 3)
	assert.Equal(t, "api", snap.Services[0].Service)
	assert.Equal(t, D, snap.Services[1].Status)
	assert.Equal(t, int64(42), snap.Services[2].LastResponseTime)
	require.NotNil(t, snap.Services[2].LastCheck)

	push(w, clock, "queue", U, U, U)
	assert.Equal(t, U, w.EvaluateAndAggregate().Status)
}

func TestEvaluateAndAggregate_NoResultsYet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	w := newTestWindows(clock, "api")

	snap := w.EvaluateAndAggregate()
	assert.Equal(t, H, snap.Status)
	require.Len(t, snap.Services, 1)
	assert.Nil(t, snap.Services[0].LastCheck)
}

func TestSnapshot_CachedWithTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	w := newTestWindows(clock, "api")

	_, ok := w.Snapshot()
	assert.False(t, ok)

	push(w, clock, "api", U, U, U)
	want := w.EvaluateAndAggregate()

	got, ok := w.Snapshot()
	require.True(t, ok)
	assert.Equal(t, want.Status, got.Status)

	clock.Advance(61 * time.Second)
	_, ok = w.Snapshot()
	assert.False(t, ok)
}

func statuses(rs []health.CheckResult) []health.Status {
	out := make([]health.Status, len(rs))
	for i, r := range rs {
		out[i] = r.Status
	}
	return out
}
