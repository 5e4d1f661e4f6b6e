package domain

import (
	"encoding/json"
	"time"
)

// Access log outcomes.
const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
)

// AccessLog records who did what to which resource.
type AccessLog struct {
	ID         int64           `json:"id"`
	UserID     *string         `json:"user_id"`
	ResourceID *string         `json:"resource_id"`
	Action     string          `json:"action"`
	Outcome    string          `json:"outcome"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AccessLogFilter narrows access log listings.
type AccessLogFilter struct {
	UserID     string
	ResourceID string
	Action     string
	Outcome    string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}
