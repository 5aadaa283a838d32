package incident

import (
	"fmt"
	"time"

	"github.com/NordCoder/Healthwatch/internal/domain/health"
	"github.com/google/uuid"
)

type Details struct {
	Error         string               `json:"error,omitempty"`
	RecentResults []health.CheckResult `json:"recentResults,omitempty"`
}

type Incident struct {
	ID           uuid.UUID     `json:"id"`
	ServiceName  string        `json:"service_name"`
	Severity     health.Status `json:"severity"`
	StartedAt    time.Time     `json:"started_at"`
	ResolvedAt   *time.Time    `json:"resolved_at"`
	ErrorDetails Details       `json:"error_details"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (i *Incident) Active() bool { return i.ResolvedAt == nil }

type TransitionKind int

const (
	TransitionOpened TransitionKind = iota + 1
	TransitionResolved
)

// Transition is emitted when a service enters or leaves an incident.
type Transition struct {
	Kind        TransitionKind
	Service     string
	DisplayName string
	Status      health.Status
	IncidentID  uuid.UUID
	Error       string
	At          time.Time
}

func (t Transition) String() string {
	if t.Kind == TransitionResolved {
		return "incident → healthy"
	}
	return fmt.Sprintf("healthy → %s", t.Status)
}
