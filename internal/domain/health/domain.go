package health

import (
	"encoding/json"
	"strings"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

func (s Status) IsHealthy() bool { return s == StatusHealthy }

// Worst returns the more severe of a and b (unhealthy > degraded > healthy).
// Unknown values rank as unhealthy.
func Worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

type ServiceDefinition struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	HealthPath  string `json:"health_path"`
}

func (d ServiceDefinition) Endpoint() string {
	base := strings.TrimRight(d.URL, "/")
	path := d.HealthPath
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

type CheckResult struct {
	Service        string          `json:"service"`
	Status         Status          `json:"status"`
	ResponseTimeMs int64           `json:"responseTime"`
	Timestamp      time.Time       `json:"timestamp"`
	Error          string          `json:"error,omitempty"`
	Checks         json.RawMessage `json:"checks,omitempty"`
}

type ServiceStatus struct {
	Service          string        `json:"service"`
	DisplayName      string        `json:"displayName"`
	Status           Status        `json:"status"`
	LastCheck        *time.Time    `json:"lastCheck"`
	LastResponseTime int64         `json:"lastResponseTime"`
	RecentResults    []CheckResult `json:"recentResults"`
	Error            string        `json:"error,omitempty"`
}

type Snapshot struct {
	Status          Status          `json:"status"`
	Services        []ServiceStatus `json:"services"`
	LastUpdated     time.Time       `json:"lastUpdated"`
	CheckIntervalMs int64           `json:"checkIntervalMs"`
}
