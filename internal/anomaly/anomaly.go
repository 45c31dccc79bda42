package anomaly

// Severity classifies how urgent an anomaly is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly types, one per rule.
const (
	TypeOrderVolume         = "order_volume"
	TypeOrderValue          = "order_value"
	TypeProcessingTime      = "processing_time"
	TypeTransactionFailures = "transaction_failures"
	TypeInventorySync       = "inventory_sync"
	TypeSyncDelay           = "sync_delay"
)

// Anomaly is one rule violation from a single evaluation cycle. Anomalies
// carry no identity and are never deduplicated here; repeated emission
// across cycles is the reporting consumer's concern.
type Anomaly struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}
