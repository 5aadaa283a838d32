package obs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")
	l, err := NewLogger(LogConfig{Level: "debug", Pretty: true, App: "health-monitor", Env: "test", Ver: "1.2.3", File: path})
	require.NoError(t, err)

	l.Info("cycle finished")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"cycle finished"`)
	assert.Contains(t, string(data), `"service":"health-monitor"`)
	assert.Contains(t, string(data), `"env":"test"`)
	assert.Contains(t, string(data), `"version":"1.2.3"`)
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	l, err := NewLogger(LogConfig{Level: "loud"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
}

func TestMetricsRouter(t *testing.T) {
	var healthErr error
	status := Route{Pattern: "/status", Handler: func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"overall":"healthy"}`))
	}}
	srv := httptest.NewServer(NewMetricsRouter(func(context.Context) error { return healthErr }, status))
	defer srv.Close()

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusOK, get("/metrics"))
	assert.Equal(t, http.StatusOK, get("/status"))

	healthErr = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, get("/healthz"))
	assert.Equal(t, http.StatusNotFound, get("/nope"))
}

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core)

	WithTrace(context.Background(), l).Info("no span")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	WithTrace(trace.ContextWithSpanContext(context.Background(), sc), l).Info("with span")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "trace_id")
	assert.Equal(t, sc.TraceID().String(), entries[1].ContextMap()["trace_id"])
	assert.Equal(t, true, entries[1].ContextMap()["sampled"])
}

func TestNewLogger_AtomicLevel(t *testing.T) {
	lvl := zap.NewAtomicLevel()
	l, err := NewLogger(LogConfig{Level: "warn", Atomic: &lvl})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	lvl.SetLevel(zap.DebugLevel)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}

func TestMetricsRouter_CORS(t *testing.T) {
	srv := httptest.NewServer(NewMetricsRouter(nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSetupTracing_Disabled(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	tr, err := SetupTracing(context.Background(), TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, tr.Shutdown(context.Background()))
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestSetupTracing_RequiresEndpoint(t *testing.T) {
	_, err := SetupTracing(context.Background(), TracingConfig{Enable: true})
	require.Error(t, err)
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, sampleRatio(0))
	assert.Equal(t, 1.0, sampleRatio(3))
	assert.Equal(t, 0.25, sampleRatio(0.25))
}
