package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeServiceUnhealthy = "system.health.service_unhealthy"
	TypeServiceRecovered = "system.health.service_recovered"

	TypeDisruptionOpened   = "system.notification.service_disruption"
	TypeDisruptionResolved = "system.notification.service_disruption_resolved"
)

// Topics lists every event type the monitor publishes; each type is its own topic.
var Topics = []string{
	TypeServiceUnhealthy,
	TypeServiceRecovered,
	TypeDisruptionOpened,
	TypeDisruptionResolved,
}

type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

type ServiceUnhealthyPayload struct {
	Service     string    `json:"service"`
	DisplayName string    `json:"display_name"`
	Status      string    `json:"status"`
	IncidentID  uuid.UUID `json:"incident_id"`
	Transition  string    `json:"transition"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

type ServiceRecoveredPayload struct {
	Service     string    `json:"service"`
	DisplayName string    `json:"display_name"`
	IncidentID  uuid.UUID `json:"incident_id"`
	Transition  string    `json:"transition"`
	At          time.Time `json:"at"`
}

type DisruptionPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
	Service        string    `json:"service"`
	DisplayName    string    `json:"display_name"`
	Severity       string    `json:"severity,omitempty"`
	Title          string    `json:"title,omitempty"`
	Message        string    `json:"message,omitempty"`
}
