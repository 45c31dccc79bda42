package anomaly

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pipeline-alerts/internal/metrics"
)

// Current carries the snapshots to evaluate in one cycle. A nil category
// means no data was collected and its rules are skipped.
type Current struct {
	Orders       *metrics.OrderSnapshot
	Transactions *metrics.TransactionSnapshot
	Inventory    *metrics.InventorySnapshot
}

// History supplies cached snapshot sequences for baseline computation.
type History interface {
	OrderHistory() []metrics.OrderSnapshot
}

// Engine evaluates the threshold rules against current snapshots. All rules
// are stateless; the order-value drift rule additionally consults History
// for its baseline.
type Engine struct {
	history    History
	thresholds Thresholds
	logger     zerolog.Logger
	now        func() time.Time
}

// New constructs an Engine over the given history source.
func New(history History, thresholds Thresholds, logger zerolog.Logger) *Engine {
	return &Engine{
		history:    history,
		thresholds: thresholds,
		logger:     logger.With().Str("component", "anomaly_engine").Logger(),
		now:        time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Detect runs every applicable rule and returns the triggered anomalies in
// fixed order: orders, transactions, inventory. Evaluation of one category
// never aborts the others.
func (e *Engine) Detect(current Current) []Anomaly {
	anomalies := make([]Anomaly, 0)
	anomalies = append(anomalies, e.runChecks(metrics.CategoryOrders, func() []Anomaly {
		return e.checkOrders(current.Orders)
	})...)
	anomalies = append(anomalies, e.runChecks(metrics.CategoryTransactions, func() []Anomaly {
		return e.checkTransactions(current.Transactions)
	})...)
	anomalies = append(anomalies, e.runChecks(metrics.CategoryInventory, func() []Anomaly {
		return e.checkInventory(current.Inventory)
	})...)
	return anomalies
}

// runChecks isolates one category's rules so a panic cannot cross the
// engine boundary.
func (e *Engine) runChecks(category metrics.Category, check func() []Anomaly) (out []Anomaly) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Str("category", string(category)).Msg("category checks aborted")
			out = nil
		}
	}()
	return check()
}

func (e *Engine) checkOrders(snap *metrics.OrderSnapshot) []Anomaly {
	if snap == nil {
		return nil
	}

	anomalies := make([]Anomaly, 0, 2)

	if snap.OrderCount < e.thresholds.Orders.MinHourlyOrders {
		anomalies = append(anomalies, Anomaly{
			Type:     TypeOrderVolume,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Order volume below threshold: %d orders", snap.OrderCount),
		})
	}

	if baseline, ok := e.orderValueBaseline(); ok {
		change := snap.AvgOrderValue.Sub(baseline).Abs().Div(baseline)
		if change.GreaterThan(decimal.NewFromFloat(e.thresholds.Orders.MaxOrderValueChange)) {
			anomalies = append(anomalies, Anomaly{
				Type:     TypeOrderValue,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("Unusual change in average order value: %s%%", change.Mul(decimal.NewFromInt(100)).StringFixed(2)),
			})
		}
	}

	return anomalies
}

func (e *Engine) checkTransactions(snap *metrics.TransactionSnapshot) []Anomaly {
	if snap == nil {
		return nil
	}

	anomalies := make([]Anomaly, 0, 2)

	if snap.AvgProcessingTime > e.thresholds.Transactions.MaxProcessingTime.Seconds() {
		anomalies = append(anomalies, Anomaly{
			Type:     TypeProcessingTime,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("High transaction processing time: %.1fs", snap.AvgProcessingTime),
		})
	}

	total := snap.FailedTransactions + snap.SuccessfulTransactions
	if total > 0 {
		rate := float64(snap.FailedTransactions) / float64(total)
		if rate > e.thresholds.Transactions.MaxFailureRate {
			anomalies = append(anomalies, Anomaly{
				Type:     TypeTransactionFailures,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("High transaction failure rate: %.2f%%", rate*100),
			})
		}
	}

	return anomalies
}

func (e *Engine) checkInventory(snap *metrics.InventorySnapshot) []Anomaly {
	if snap == nil {
		return nil
	}

	anomalies := make([]Anomaly, 0, 2)

	if snap.TotalProducts > 0 {
		ratio := float64(snap.StaleItems) / float64(snap.TotalProducts)
		if ratio > e.thresholds.Inventory.MaxStaleItemsRatio {
			anomalies = append(anomalies, Anomaly{
				Type:     TypeInventorySync,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("High ratio of stale inventory items: %.2f%%", ratio*100),
			})
		}
	}

	if snap.LatestSync != nil {
		delay := e.now().Sub(*snap.LatestSync)
		if delay > e.thresholds.Inventory.MaxSyncDelay {
			anomalies = append(anomalies, Anomaly{
				Type:     TypeSyncDelay,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("Inventory sync delayed by %.0fs", delay.Seconds()),
			})
		}
	}

	return anomalies
}

// orderValueBaseline computes the arithmetic mean of the cached average
// order values. Reports false when history is empty or the mean is zero;
// the drift rule is skipped in either case.
func (e *Engine) orderValueBaseline() (decimal.Decimal, bool) {
	if e.history == nil {
		return decimal.Zero, false
	}

	history := e.history.OrderHistory()
	if len(history) == 0 {
		e.logger.Debug().Msg("no order history; drift rule skipped")
		return decimal.Zero, false
	}

	sum := decimal.Zero
	for _, snap := range history {
		sum = sum.Add(snap.AvgOrderValue)
	}

	baseline := sum.Div(decimal.NewFromInt(int64(len(history))))
	if baseline.IsZero() {
		e.logger.Debug().Msg("zero order-value baseline; drift rule skipped")
		return decimal.Zero, false
	}

	return baseline, true
}
