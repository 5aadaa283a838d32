package health_monitor

import (
	"sync"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
)

type WindowConfig struct {
	Size        int
	TTL         time.Duration
	Threshold   int
	SnapshotTTL time.Duration
	Interval    time.Duration
}

func (c WindowConfig) withDefaults() WindowConfig {
	if c.Size <= 0 {
		c.Size = 5
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.Threshold <= 0 {
		c.Threshold = 3
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 60 * time.Second
	}
	return c
}

type window struct {
	results   []health.CheckResult
	expiresAt time.Time
}

// SlidingWindowStore keeps the most recent results per service and derives a
// debounced status from them. Safe for concurrent use.
type SlidingWindowStore struct {
	cfg      WindowConfig
	services []health.ServiceDefinition

	mu          sync.RWMutex
	windows     map[string]*window
	snapshot    *health.Snapshot
	snapshotExp time.Time

	now func() time.Time
}

func NewSlidingWindowStore(services []health.ServiceDefinition, cfg WindowConfig) *SlidingWindowStore {
	return &SlidingWindowStore{
		cfg:      cfg.withDefaults(),
		services: services,
		windows:  make(map[string]*window, len(services)),
		now:      time.Now,
	}
}

// PushResult appends r, keeps only the newest Size entries and refreshes the TTL.
func (s *SlidingWindowStore) PushResult(r health.CheckResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[r.Service]
	if !ok || now.After(w.expiresAt) {
		w = &window{results: make([]health.CheckResult, 0, s.cfg.Size)}
		s.windows[r.Service] = w
	}
	w.results = append(w.results, r)
	if over := len(w.results) - s.cfg.Size; over > 0 {
		w.results = append(w.results[:0], w.results[over:]...)
	}
	w.expiresAt = now.Add(s.cfg.TTL)
}

// Results returns a copy of the live window for name, oldest first.
func (s *SlidingWindowStore) Results(name string) []health.CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resultsLocked(name)
}

func (s *SlidingWindowStore) resultsLocked(name string) []health.CheckResult {
	w, ok := s.windows[name]
	if !ok || s.now().After(w.expiresAt) {
		return nil
	}
	out := make([]health.CheckResult, len(w.results))
	copy(out, w.results)
	return out
}

func (s *SlidingWindowStore) EvaluateService(name string) health.Status {
	return classify(s.Results(name), s.cfg.Threshold)
}

// classify counts statuses anywhere in the window; streaks do not matter.
func classify(results []health.CheckResult, threshold int) health.Status {
	var unhealthy, degraded int
	for _, r := range results {
		switch r.Status {
		case health.StatusUnhealthy:
			unhealthy++
		case health.StatusDegraded:
			degraded++
		}
	}
	switch {
	case unhealthy >= threshold:
		return health.StatusUnhealthy
	case degraded >= threshold:
		return health.StatusDegraded
	default:
		return health.StatusHealthy
	}
}

// EvaluateAndAggregate evaluates every configured service, rolls them up into
// the worst overall status and caches the snapshot for SnapshotTTL.
func (s *SlidingWindowStore) EvaluateAndAggregate() health.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := health.Snapshot{
		Status:          health.StatusHealthy,
		Services:        make([]health.ServiceStatus, 0, len(s.services)),
		LastUpdated:     now.UTC(),
		CheckIntervalMs: s.cfg.Interval.Milliseconds(),
	}
	for _, def := range s.services {
		results := s.resultsLocked(def.Name)
		st := health.ServiceStatus{
			Service:       def.Name,
			DisplayName:   def.DisplayName,
			Status:        classify(results, s.cfg.Threshold),
			RecentResults: results,
		}
		if n := len(results); n > 0 {
			last := results[n-1]
			ts := last.Timestamp
			st.LastCheck = &ts
			st.LastResponseTime = last.ResponseTimeMs
			st.Error = last.Error
		}
		snap.Status = health.Worst(snap.Status, st.Status)
		snap.Services = append(snap.Services, st)
	}

	s.snapshot = &snap
	s.snapshotExp = now.Add(s.cfg.SnapshotTTL)
	return snap
}

// Snapshot returns the last aggregated snapshot while it is still fresh.
func (s *SlidingWindowStore) Snapshot() (health.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || s.now().After(s.snapshotExp) {
		return health.Snapshot{}, false
	}
	return *s.snapshot, true
}
