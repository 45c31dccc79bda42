package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pipeline-alerts/internal/probe"
)

// Store collects current snapshots from the probe layer and maintains the
// rolling history per category. Probe failures never escape the Collect
// methods: a nil snapshot means "no data this cycle" and callers skip the
// category's evaluation.
type Store struct {
	mu sync.Mutex

	orders       probe.OrderSource
	transactions probe.TransactionSource
	inventory    probe.InventorySource
	cache        *Cache
	now          func() time.Time
	logger       zerolog.Logger
}

// NewStore wires the probe sources to a rolling cache.
func NewStore(orders probe.OrderSource, transactions probe.TransactionSource, inventory probe.InventorySource, window time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		orders:       orders,
		transactions: transactions,
		inventory:    inventory,
		cache:        NewCache(window),
		now:          time.Now,
		logger:       logger.With().Str("component", "metrics_store").Logger(),
	}
}

// WithClock overrides the time source. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// CollectOrders samples order activity, caches the snapshot, and returns it.
// Returns nil when the probe fails; the failure is logged here.
func (s *Store) CollectOrders(ctx context.Context) *OrderSnapshot {
	stats, err := s.orders.FetchOrderStats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("category", string(CategoryOrders)).Msg("collection failed")
		return nil
	}

	snap := OrderSnapshot{
		Timestamp:       s.now().UTC(),
		OrderCount:      stats.OrderCount,
		AvgOrderValue:   stats.AvgOrderValue,
		UniqueCustomers: stats.UniqueCustomers,
	}

	s.mu.Lock()
	s.cache.AddOrder(snap, snap.Timestamp)
	s.mu.Unlock()

	return &snap
}

// CollectTransactions samples payment processing, caches the snapshot, and
// returns it. Returns nil on probe failure.
func (s *Store) CollectTransactions(ctx context.Context) *TransactionSnapshot {
	stats, err := s.transactions.FetchTransactionStats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("category", string(CategoryTransactions)).Msg("collection failed")
		return nil
	}

	snap := TransactionSnapshot{
		Timestamp:              s.now().UTC(),
		AvgProcessingTime:      stats.AvgProcessingTime,
		FailedTransactions:     stats.FailedTransactions,
		SuccessfulTransactions: stats.SuccessfulTransactions,
	}

	s.mu.Lock()
	s.cache.AddTransaction(snap, snap.Timestamp)
	s.mu.Unlock()

	return &snap
}

// CollectInventory samples catalog sync state, caches the snapshot, and
// returns it. Returns nil on probe failure.
func (s *Store) CollectInventory(ctx context.Context) *InventorySnapshot {
	stats, err := s.inventory.FetchInventoryStats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("category", string(CategoryInventory)).Msg("collection failed")
		return nil
	}

	snap := InventorySnapshot{
		Timestamp:     s.now().UTC(),
		TotalProducts: stats.TotalProducts,
		StaleItems:    stats.StaleItems,
		LatestSync:    stats.LatestSync,
	}

	s.mu.Lock()
	s.cache.AddInventory(snap, snap.Timestamp)
	s.mu.Unlock()

	return &snap
}

// OrderHistory returns the cached order snapshots.
func (s *Store) OrderHistory() []OrderSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Orders()
}

// TransactionHistory returns the cached transaction snapshots.
func (s *Store) TransactionHistory() []TransactionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Transactions()
}

// InventoryHistory returns the cached inventory snapshots.
func (s *Store) InventoryHistory() []InventorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Inventory()
}
