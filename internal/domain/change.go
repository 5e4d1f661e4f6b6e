package domain

import (
	"encoding/json"
	"time"
)

// Change event types.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Tables that publish change events.
const (
	TableResources  = "resources"
	TableProfiles   = "profiles"
	TableAccessLogs = "access_logs"
	TableAlerts     = "alerts"
	TableSettings   = "user_settings"
)

// Change describes a row-level mutation delivered to realtime subscribers.
type Change struct {
	Table      string          `json:"table"`
	Type       string          `json:"type"`
	RecordID   string          `json:"record_id"`
	OwnerID    string          `json:"owner_id,omitempty"`
	Record     json.RawMessage `json:"record,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
