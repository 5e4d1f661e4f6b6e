package domain

import "time"

// Performance sample sources.
const (
	SourceServer = "server"
	SourceClient = "client"
)

// PerformanceSample is one timed operation.
type PerformanceSample struct {
	Name       string
	Source     string
	DurationMS float64
	Error      bool
	OccurredAt time.Time
}

// PerformanceRollup stores aggregated latency statistics for a time bucket.
type PerformanceRollup struct {
	Name        string        `json:"name"`
	Source      string        `json:"source"`
	BucketStart time.Time     `json:"bucket_start"`
	BucketSpan  time.Duration `json:"bucket_span"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"error_count"`
	P50MS       *float64      `json:"p50_ms,omitempty"`
	P90MS       *float64      `json:"p90_ms,omitempty"`
	P95MS       *float64      `json:"p95_ms,omitempty"`
	P99MS       *float64      `json:"p99_ms,omitempty"`
	MaxMS       *float64      `json:"max_ms,omitempty"`
	AvgMS       *float64      `json:"avg_ms,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// DashboardStats summarises the current state for the dashboard landing page.
type DashboardStats struct {
	ResourcesByType      map[string]int `json:"resources_by_type"`
	ResourcesByStatus    map[string]int `json:"resources_by_status"`
	OpenAlertsBySeverity map[string]int `json:"open_alerts_by_severity"`
	ProfileCount         int            `json:"profile_count"`
	AccessLogsLast24h    int            `json:"access_logs_last_24h"`
	GeneratedAt          time.Time      `json:"generated_at"`
}
