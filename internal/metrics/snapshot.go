package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category partitions the metrics, cache, and rule space.
type Category string

const (
	CategoryOrders       Category = "orders"
	CategoryTransactions Category = "transactions"
	CategoryInventory    Category = "inventory"
)

// OrderSnapshot is one timestamped aggregation of order activity.
type OrderSnapshot struct {
	Timestamp       time.Time
	OrderCount      int64
	AvgOrderValue   decimal.Decimal
	UniqueCustomers int64
}

// TransactionSnapshot is one timestamped aggregation of payment processing.
type TransactionSnapshot struct {
	Timestamp              time.Time
	AvgProcessingTime      float64 // seconds
	FailedTransactions     int64
	SuccessfulTransactions int64
}

// InventorySnapshot is one timestamped view of catalog sync state.
// LatestSync is nil when the source reported no sync timestamp; rules that
// need it must skip rather than substitute a zero time.
type InventorySnapshot struct {
	Timestamp     time.Time
	TotalProducts int64
	StaleItems    int64
	LatestSync    *time.Time
}
