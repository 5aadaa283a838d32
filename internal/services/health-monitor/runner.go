package health_monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/events"
	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/NordCoder/Healthwatch/internal/domain/incident"
	"github.com/NordCoder/Healthwatch/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	mCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "health_monitor_cycles_total", Help: "Monitoring cycles by result (ok, panic).",
	}, []string{"result"})
	mSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "health_monitor_ticks_skipped_total", Help: "Ticks skipped because a cycle was still running.",
	})
	mCycleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "health_monitor_cycle_duration_seconds", Help: "Monitoring cycle duration.",
		Buckets: prometheus.DefBuckets,
	})
	mErr = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "health_monitor_errors_total", Help: "Errors inside monitoring cycles by step.",
	}, []string{"step"})
	mServiceStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_monitor_service_status", Help: "Debounced status per service (0 healthy, 1 degraded, 2 unhealthy).",
	}, []string{"service"})
	mOverallStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "health_monitor_overall_status", Help: "Worst status across services (0 healthy, 1 degraded, 2 unhealthy).",
	})
	mResponseTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "health_monitor_check_duration_seconds", Help: "Health endpoint response time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "status"})
	mTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "health_monitor_incident_transitions_total", Help: "Incident transitions by kind.",
	}, []string{"kind"})
)

type LoopConfig struct {
	Interval         time.Duration
	HistoryRetention time.Duration
	PruneEvery       time.Duration
}

type Loop struct {
	Log           *zap.Logger
	Checker       Checker
	Windows       *SlidingWindowStore
	History       health.HistoryRepo
	Incidents     *IncidentManager
	Notifications *NotificationManager
	Events        events.Publisher
	Clock         health.Clock
	Cfg           LoopConfig

	running   atomic.Bool
	inflight  sync.WaitGroup
	lastPrune time.Time
}

// Run fires one cycle immediately and then one per interval until ctx is done.
// A tick that arrives while the previous cycle is still running is skipped.
// On cancellation Run waits for the in-flight cycle before returning.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.Log.Info("monitor loop started", zap.Duration("interval", interval))
	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			l.inflight.Wait()
			l.Log.Info("monitor loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if !l.running.CompareAndSwap(false, true) {
		mSkipped.Inc()
		l.Log.Warn("previous cycle still running, tick skipped")
		return
	}
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		defer l.running.Store(false)
		// the cycle outlives shutdown so its writes land
		l.RunCycle(context.WithoutCancel(ctx))
	}()
}

// RunCycle executes one full cycle. A panic anywhere inside is logged and
// counted; it never escapes.
func (l *Loop) RunCycle(ctx context.Context) {
	start := time.Now()
	defer func() { mCycleDur.Observe(time.Since(start).Seconds()) }()

	if r := panics.Try(func() { l.cycle(ctx) }); r != nil {
		mCycles.WithLabelValues("panic").Inc()
		l.Log.Error("monitor cycle panicked", zap.String("panic", r.String()))
		return
	}
	mCycles.WithLabelValues("ok").Inc()
}

// Snapshot returns the cached aggregated view, or false once it has expired.
func (l *Loop) Snapshot() (health.Snapshot, bool) {
	return l.Windows.Snapshot()
}

func (l *Loop) cycle(ctx context.Context) {
	ctx, span := otel.Tracer("health.monitor").Start(ctx, "monitor.cycle")
	defer span.End()
	log := obs.WithTrace(ctx, l.Log)

	results := l.Checker.CheckAll(ctx)
	for _, r := range results {
		l.Windows.PushResult(r)
		mResponseTime.WithLabelValues(r.Service, string(r.Status)).
			Observe(float64(r.ResponseTimeMs) / 1000)
	}

	snap := l.Windows.EvaluateAndAggregate()
	mOverallStatus.Set(statusValue(snap.Status))
	span.SetAttributes(
		attribute.Int("services", len(snap.Services)),
		attribute.String("overall.status", string(snap.Status)),
	)

	l.persist(ctx, log, results)

	if err := l.Incidents.Reconcile(ctx); err != nil {
		mErr.WithLabelValues("incident_reconcile").Inc()
		log.Warn("incident reconcile", zap.Error(err))
	}
	transitions := l.Incidents.ProcessStatusChanges(ctx, snap.Services)

	healthy := make([]string, 0, len(snap.Services))
	for _, st := range snap.Services {
		mServiceStatus.WithLabelValues(st.Service).Set(statusValue(st.Status))
		if st.Status.IsHealthy() {
			healthy = append(healthy, st.Service)
			if err := l.Notifications.OnServiceRecovered(ctx, st.Service, st.DisplayName); err != nil {
				mErr.WithLabelValues("notification").Inc()
				log.Warn("notification recovery", zap.String("service", st.Service), zap.Error(err))
			}
			continue
		}
		if err := l.Notifications.OnServiceUnhealthy(ctx, st); err != nil {
			mErr.WithLabelValues("notification").Inc()
			log.Warn("notification disruption", zap.String("service", st.Service), zap.Error(err))
		}
	}
	if err := l.Notifications.CleanupHealthyServices(ctx, healthy); err != nil {
		mErr.WithLabelValues("notification_cleanup").Inc()
		log.Warn("notification cleanup", zap.Error(err))
	}

	for _, tr := range transitions {
		l.publishTransition(ctx, log, tr)
	}

	log.Debug("cycle done",
		zap.String("overall", string(snap.Status)),
		zap.Int("services", len(snap.Services)),
		zap.Int("transitions", len(transitions)))
}

func (l *Loop) persist(ctx context.Context, log *zap.Logger, results []health.CheckResult) {
	for i := range results {
		if err := l.History.Insert(ctx, &results[i]); err != nil {
			mErr.WithLabelValues("history").Inc()
			log.Warn("persist check result", zap.String("service", results[i].Service), zap.Error(err))
		}
	}

	if l.Cfg.HistoryRetention <= 0 {
		return
	}
	every := l.Cfg.PruneEvery
	if every <= 0 {
		every = time.Hour
	}
	now := l.Clock.Now()
	if !l.lastPrune.IsZero() && now.Sub(l.lastPrune) < every {
		return
	}
	l.lastPrune = now
	n, err := l.History.Prune(ctx, now.Add(-l.Cfg.HistoryRetention))
	if err != nil {
		mErr.WithLabelValues("history_prune").Inc()
		log.Warn("prune check history", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("check history pruned", zap.Int64("rows", n))
	}
}

func (l *Loop) publishTransition(ctx context.Context, log *zap.Logger, tr incident.Transition) {
	var (
		eventType string
		payload   any
	)
	switch tr.Kind {
	case incident.TransitionOpened:
		mTransitions.WithLabelValues("opened").Inc()
		eventType = events.TypeServiceUnhealthy
		payload = events.ServiceUnhealthyPayload{
			Service:     tr.Service,
			DisplayName: tr.DisplayName,
			Status:      string(tr.Status),
			IncidentID:  tr.IncidentID,
			Transition:  tr.String(),
			Error:       tr.Error,
			At:          tr.At,
		}
	case incident.TransitionResolved:
		mTransitions.WithLabelValues("resolved").Inc()
		eventType = events.TypeServiceRecovered
		payload = events.ServiceRecoveredPayload{
			Service:     tr.Service,
			DisplayName: tr.DisplayName,
			IncidentID:  tr.IncidentID,
			Transition:  tr.String(),
			At:          tr.At,
		}
	default:
		return
	}
	if err := l.Events.Publish(ctx, eventType, tr.Service, payload); err != nil {
		mErr.WithLabelValues("publish").Inc()
		log.Warn("publish transition", zap.String("event_type", eventType), zap.Error(err))
	}
}

func statusValue(s health.Status) float64 {
	switch s {
	case health.StatusHealthy:
		return 0
	case health.StatusDegraded:
		return 1
	default:
		return 2
	}
}
