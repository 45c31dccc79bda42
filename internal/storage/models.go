package storage

import (
	"time"

	"pipeline-alerts/internal/anomaly"
)

// AnomalyRecord is a persisted anomaly emission, kept for auditing and for
// the show/export commands. The in-memory anomalies themselves carry no
// identity; the id exists only in this table.
type AnomalyRecord struct {
	ID         int64
	DetectedAt time.Time
	Category   string
	Type       string
	Severity   anomaly.Severity
	Message    string
	CreatedAt  time.Time
}
