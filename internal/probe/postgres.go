package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// Orders spanning the hour boundary produce two groups; the first row
	// is taken, matching the single-row contract of the source.
	orderStatsSQL = `SELECT COUNT(*) AS order_count,
        COALESCE(AVG(total_amount), 0) AS avg_order_value,
        COUNT(DISTINCT customer_id) AS unique_customers
    FROM orders
    WHERE created_at >= NOW() - INTERVAL '1 hour'
    GROUP BY DATE_TRUNC('hour', created_at);`

	transactionStatsSQL = `SELECT
        AVG(EXTRACT(EPOCH FROM (completed_at - created_at)))::double precision AS avg_processing_time,
        COUNT(*) FILTER (WHERE status = 'failed') AS failed_transactions,
        COUNT(*) FILTER (WHERE status = 'completed') AS successful_transactions
    FROM transactions
    WHERE created_at >= NOW() - INTERVAL '1 hour';`

	inventoryStatsSQL = `SELECT COUNT(*) AS total_products,
        COUNT(*) FILTER (WHERE last_sync < NOW() - make_interval(secs => $1)) AS stale_items,
        MAX(last_sync) AS latest_sync
    FROM inventory_status;`
)

// PostgresOptions parameterise the SQL probes.
type PostgresOptions struct {
	// StaleAfter is the query-side staleness window for inventory items.
	// Independent of the evaluation thresholds.
	StaleAfter time.Duration
	Timeout    time.Duration
}

// Postgres executes the aggregation queries against the commerce database.
type Postgres struct {
	pool   *pgxpool.Pool
	opts   PostgresOptions
	logger zerolog.Logger
}

// NewPostgres builds SQL-backed probes on top of a shared pool.
func NewPostgres(pool *pgxpool.Pool, opts PostgresOptions, logger zerolog.Logger) *Postgres {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Postgres{
		pool:   pool,
		opts:   opts,
		logger: logger.With().Str("component", "probe").Logger(),
	}
}

// FetchOrderStats aggregates order activity for the trailing hour.
// An hour with no orders yields no rows and is reported as an error.
func (p *Postgres) FetchOrderStats(ctx context.Context) (OrderStats, error) {
	if p.pool == nil {
		return OrderStats{}, errors.New("probe: pool not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	var (
		stats    OrderStats
		avgValue string
	)
	if err := p.pool.QueryRow(ctx, orderStatsSQL).Scan(
		&stats.OrderCount,
		&avgValue,
		&stats.UniqueCustomers,
	); err != nil {
		return OrderStats{}, fmt.Errorf("query order stats: %w", err)
	}

	avg, err := decimal.NewFromString(avgValue)
	if err != nil {
		return OrderStats{}, fmt.Errorf("parse avg order value: %w", err)
	}
	stats.AvgOrderValue = avg

	return stats, nil
}

// FetchTransactionStats aggregates payment processing for the trailing hour.
func (p *Postgres) FetchTransactionStats(ctx context.Context) (TransactionStats, error) {
	if p.pool == nil {
		return TransactionStats{}, errors.New("probe: pool not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	var (
		stats   TransactionStats
		avgTime sql.NullFloat64
	)
	if err := p.pool.QueryRow(ctx, transactionStatsSQL).Scan(
		&avgTime,
		&stats.FailedTransactions,
		&stats.SuccessfulTransactions,
	); err != nil {
		return TransactionStats{}, fmt.Errorf("query transaction stats: %w", err)
	}

	// AVG over an empty hour is NULL; no completed transactions means no
	// latency signal, which the rule guards treat as benign.
	if avgTime.Valid {
		stats.AvgProcessingTime = avgTime.Float64
	}

	return stats, nil
}

// FetchInventoryStats reads the current sync state of the catalog.
func (p *Postgres) FetchInventoryStats(ctx context.Context) (InventoryStats, error) {
	if p.pool == nil {
		return InventoryStats{}, errors.New("probe: pool not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	var (
		stats      InventoryStats
		latestSync sql.NullTime
	)
	if err := p.pool.QueryRow(ctx, inventoryStatsSQL, p.opts.StaleAfter.Seconds()).Scan(
		&stats.TotalProducts,
		&stats.StaleItems,
		&latestSync,
	); err != nil {
		return InventoryStats{}, fmt.Errorf("query inventory stats: %w", err)
	}

	if latestSync.Valid {
		ts := latestSync.Time
		stats.LatestSync = &ts
	}

	return stats, nil
}

var (
	_ OrderSource       = (*Postgres)(nil)
	_ TransactionSource = (*Postgres)(nil)
	_ InventorySource   = (*Postgres)(nil)
)
