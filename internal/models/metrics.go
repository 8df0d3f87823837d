package models

import "time"

// SystemMetrics is a point-in-time summary of the instrumentation counters.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	Submissions              map[string]uint64 `json:"submissions"`
	ReviewDecisions          map[string]uint64 `json:"review_decisions"`
	NotificationsFailed      uint64            `json:"notifications_failed"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
