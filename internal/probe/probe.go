package probe

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStats aggregates order activity over the trailing hour.
type OrderStats struct {
	OrderCount      int64
	AvgOrderValue   decimal.Decimal
	UniqueCustomers int64
}

// TransactionStats aggregates payment processing over the trailing hour.
type TransactionStats struct {
	AvgProcessingTime      float64 // seconds
	FailedTransactions     int64
	SuccessfulTransactions int64
}

// InventoryStats captures the current synchronization state of the catalog.
// LatestSync is nil when no product has ever reported a sync time.
type InventoryStats struct {
	TotalProducts int64
	StaleItems    int64
	LatestSync    *time.Time
}

// OrderSource retrieves aggregated order activity.
type OrderSource interface {
	FetchOrderStats(ctx context.Context) (OrderStats, error)
}

// TransactionSource retrieves aggregated payment-processing activity.
type TransactionSource interface {
	FetchTransactionStats(ctx context.Context) (TransactionStats, error)
}

// InventorySource retrieves the current inventory sync state.
type InventorySource interface {
	FetchInventoryStats(ctx context.Context) (InventoryStats, error)
}
