package anomaly

import (
	"fmt"
	"time"
)

// OrderThresholds tune the order-activity rules.
type OrderThresholds struct {
	// MinHourlyOrders is the minimum expected volume per trailing hour.
	MinHourlyOrders int64 `mapstructure:"min_hourly_orders"`
	// MaxOrderValueChange is the maximum fractional drift of the average
	// order value from the historical mean.
	MaxOrderValueChange float64 `mapstructure:"max_order_value_change"`
	// MinUniqueCustomers is declared but not consumed by any rule yet.
	MinUniqueCustomers int64 `mapstructure:"min_unique_customers"`
}

// TransactionThresholds tune the payment-processing rules.
type TransactionThresholds struct {
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
	MaxFailureRate    float64       `mapstructure:"max_failure_rate"`
}

// InventoryThresholds tune the inventory-sync rules.
type InventoryThresholds struct {
	MaxStaleItemsRatio float64       `mapstructure:"max_stale_items_ratio"`
	MaxSyncDelay       time.Duration `mapstructure:"max_sync_delay"`
}

// Thresholds is the static rule configuration, fixed for the process
// lifetime.
type Thresholds struct {
	Orders       OrderThresholds       `mapstructure:"orders"`
	Transactions TransactionThresholds `mapstructure:"transactions"`
	Inventory    InventoryThresholds   `mapstructure:"inventory"`
}

// DefaultThresholds returns the stock rule table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Orders: OrderThresholds{
			MinHourlyOrders:     10,
			MaxOrderValueChange: 0.30,
			MinUniqueCustomers:  5,
		},
		Transactions: TransactionThresholds{
			MaxProcessingTime: 30 * time.Second,
			MaxFailureRate:    0.05,
		},
		Inventory: InventoryThresholds{
			MaxStaleItemsRatio: 0.10,
			MaxSyncDelay:       300 * time.Second,
		},
	}
}

// Validate rejects threshold values that no rule can meaningfully apply.
func (t Thresholds) Validate() error {
	if t.Orders.MinHourlyOrders < 0 {
		return fmt.Errorf("thresholds.orders.min_hourly_orders cannot be negative")
	}
	if t.Orders.MaxOrderValueChange < 0 {
		return fmt.Errorf("thresholds.orders.max_order_value_change cannot be negative")
	}
	if t.Orders.MinUniqueCustomers < 0 {
		return fmt.Errorf("thresholds.orders.min_unique_customers cannot be negative")
	}
	if t.Transactions.MaxProcessingTime < 0 {
		return fmt.Errorf("thresholds.transactions.max_processing_time cannot be negative")
	}
	if t.Transactions.MaxFailureRate < 0 || t.Transactions.MaxFailureRate > 1 {
		return fmt.Errorf("thresholds.transactions.max_failure_rate must be within [0,1]")
	}
	if t.Inventory.MaxStaleItemsRatio < 0 || t.Inventory.MaxStaleItemsRatio > 1 {
		return fmt.Errorf("thresholds.inventory.max_stale_items_ratio must be within [0,1]")
	}
	if t.Inventory.MaxSyncDelay < 0 {
		return fmt.Errorf("thresholds.inventory.max_sync_delay cannot be negative")
	}
	return nil
}
