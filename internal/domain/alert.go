package domain

import "time"

// Alert severities in ascending order.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses.
const (
	AlertOpen         = "open"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
)

// Alert is a notification raised about a resource or the system.
type Alert struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Severity       string     `json:"severity"`
	Status         string     `json:"status"`
	ResourceID     *string    `json:"resource_id"`
	CreatedBy      *string    `json:"created_by,omitempty"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Status     string
	Severity   string
	ResourceID string
	Limit      int
	Offset     int
}

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// SeverityAtLeast reports whether severity meets threshold. Unknown values never match.
func SeverityAtLeast(severity, threshold string) bool {
	s, ok := severityRank[severity]
	if !ok {
		return false
	}
	t, ok := severityRank[threshold]
	if !ok {
		return false
	}
	return s >= t
}
