package notification

import (
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/google/uuid"
)

const (
	TypeServiceDisruption = "service_disruption"
	SourceHealthMonitor   = "health-monitor"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

func SeverityFor(s health.Status) Severity {
	if s == health.StatusDegraded {
		return SeverityWarning
	}
	return SeverityError
}

type Metadata struct {
	ServiceName string `json:"service_name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error,omitempty"`
}

type Notification struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Severity    Severity  `json:"severity"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	IsActive    bool      `json:"is_active"`
	Dismissible bool      `json:"dismissible"`
	Metadata    Metadata  `json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
