package metrics

import "time"

// DefaultWindow is the retention horizon for cached snapshots.
const DefaultWindow = 24 * time.Hour

// Cache holds per-category snapshot history, pruned on every insert to the
// retention window. Entry count is bounded only by collection frequency.
// The cache is not safe for concurrent use; Store serializes access.
type Cache struct {
	window       time.Duration
	orders       []OrderSnapshot
	transactions []TransactionSnapshot
	inventory    []InventorySnapshot
}

// NewCache constructs a rolling cache with the given retention window.
func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{window: window}
}

// AddOrder appends a snapshot and prunes entries older than the window
// relative to now.
func (c *Cache) AddOrder(snap OrderSnapshot, now time.Time) {
	c.orders = append(c.orders, snap)
	cutoff := now.Add(-c.window)
	kept := c.orders[:0]
	for _, s := range c.orders {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	c.orders = kept
}

// AddTransaction appends a snapshot and prunes aged entries.
func (c *Cache) AddTransaction(snap TransactionSnapshot, now time.Time) {
	c.transactions = append(c.transactions, snap)
	cutoff := now.Add(-c.window)
	kept := c.transactions[:0]
	for _, s := range c.transactions {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	c.transactions = kept
}

// AddInventory appends a snapshot and prunes aged entries.
func (c *Cache) AddInventory(snap InventorySnapshot, now time.Time) {
	c.inventory = append(c.inventory, snap)
	cutoff := now.Add(-c.window)
	kept := c.inventory[:0]
	for _, s := range c.inventory {
		if s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	c.inventory = kept
}

// Orders returns a copy of the cached order history in insertion order.
func (c *Cache) Orders() []OrderSnapshot {
	out := make([]OrderSnapshot, len(c.orders))
	copy(out, c.orders)
	return out
}

// Transactions returns a copy of the cached transaction history.
func (c *Cache) Transactions() []TransactionSnapshot {
	out := make([]TransactionSnapshot, len(c.transactions))
	copy(out, c.transactions)
	return out
}

// Inventory returns a copy of the cached inventory history.
func (c *Cache) Inventory() []InventorySnapshot {
	out := make([]InventorySnapshot, len(c.inventory))
	copy(out, c.inventory)
	return out
}
