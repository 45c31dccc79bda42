package cli

import (
	"time"

	"github.com/spf13/cobra"

	"pipeline-alerts/internal/app"
)

var (
	simOrderCount     int64
	simAvgOrderValue  float64
	simBaselineValue  float64
	simProcessingTime float64
	simFailed         int64
	simSuccessful     int64
	simTotalProducts  int64
	simStaleItems     int64
	simSyncAge        time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Evaluate a synthetic snapshot set against the rule table",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			OrderCount:         simOrderCount,
			AvgOrderValue:      simAvgOrderValue,
			BaselineOrderValue: simBaselineValue,
			ProcessingTime:     simProcessingTime,
			Failed:             simFailed,
			Successful:         simSuccessful,
			TotalProducts:      simTotalProducts,
			StaleItems:         simStaleItems,
			SyncAge:            simSyncAge,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simOrderCount, "order-count", 50, "Orders in the trailing hour")
	simulateCmd.Flags().Float64Var(&simAvgOrderValue, "avg-order-value", 100, "Current average order value")
	simulateCmd.Flags().Float64Var(&simBaselineValue, "baseline-order-value", 0, "Historical average order value (0 disables the drift rule)")
	simulateCmd.Flags().Float64Var(&simProcessingTime, "processing-time", 1, "Average transaction processing time in seconds")
	simulateCmd.Flags().Int64Var(&simFailed, "failed", 0, "Failed transactions in the trailing hour")
	simulateCmd.Flags().Int64Var(&simSuccessful, "successful", 100, "Successful transactions in the trailing hour")
	simulateCmd.Flags().Int64Var(&simTotalProducts, "total-products", 1000, "Products in the catalog")
	simulateCmd.Flags().Int64Var(&simStaleItems, "stale-items", 0, "Products with stale sync state")
	simulateCmd.Flags().DurationVar(&simSyncAge, "sync-age", time.Minute, "Age of the latest inventory sync")
}
