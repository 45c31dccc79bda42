package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"pipeline-alerts/internal/alerting"
	"pipeline-alerts/internal/anomaly"
	"pipeline-alerts/internal/metrics"
)

// Simulate evaluates a synthetic snapshot set against the configured rule
// table without touching the database, and dispatches a notification when
// alerting is enabled. Useful for verifying thresholds and channel wiring.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	now := time.Now().UTC()

	var history anomaly.History
	if opts.BaselineOrderValue > 0 {
		history = staticHistory{metrics.OrderSnapshot{
			Timestamp:     now.Add(-time.Hour),
			OrderCount:    opts.OrderCount,
			AvgOrderValue: decimal.NewFromFloat(opts.BaselineOrderValue),
		}}
	}

	engine := anomaly.New(history, a.Config.Thresholds, a.Logger)

	syncTime := now.Add(-opts.SyncAge)
	current := anomaly.Current{
		Orders: &metrics.OrderSnapshot{
			Timestamp:     now,
			OrderCount:    opts.OrderCount,
			AvgOrderValue: decimal.NewFromFloat(opts.AvgOrderValue),
		},
		Transactions: &metrics.TransactionSnapshot{
			Timestamp:              now,
			AvgProcessingTime:      opts.ProcessingTime,
			FailedTransactions:     opts.Failed,
			SuccessfulTransactions: opts.Successful,
		},
		Inventory: &metrics.InventorySnapshot{
			Timestamp:     now,
			TotalProducts: opts.TotalProducts,
			StaleItems:    opts.StaleItems,
			LatestSync:    &syncTime,
		},
	}

	detected := engine.Detect(current)
	if len(detected) == 0 {
		fmt.Fprintln(os.Stdout, "no anomalies detected")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Type\tSeverity\tMessage")
	for _, anom := range detected {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", anom.Type, anom.Severity, anom.Message)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	if a.Config.Alerting.Enabled {
		notifier := a.newNotifier()
		if notifier == nil {
			return fmt.Errorf("alerting enabled but no channel configured")
		}
		note := alerting.Notification{
			DetectedAt:  now,
			Environment: a.Config.App.Environment,
			Anomalies:   detected,
			Channels:    a.Config.Alerting.Channels,
		}
		return notifier.Notify(ctx, note)
	}

	return nil
}

type staticHistory []metrics.OrderSnapshot

func (h staticHistory) OrderHistory() []metrics.OrderSnapshot {
	return h
}

var _ anomaly.History = (staticHistory)(nil)
