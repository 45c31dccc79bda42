package anomaly

import (
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pipeline-alerts/internal/metrics"
)

type fakeHistory []metrics.OrderSnapshot

func (h fakeHistory) OrderHistory() []metrics.OrderSnapshot {
	return h
}

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newTestEngine(history History) *Engine {
	return New(history, DefaultThresholds(), zerolog.Nop()).
		WithClock(func() time.Time { return testNow })
}

func orderSnap(count int64, avgValue float64) *metrics.OrderSnapshot {
	return &metrics.OrderSnapshot{
		Timestamp:     testNow,
		OrderCount:    count,
		AvgOrderValue: decimal.NewFromFloat(avgValue),
	}
}

func historyWithAvg(values ...float64) fakeHistory {
	h := make(fakeHistory, 0, len(values))
	for _, v := range values {
		h = append(h, metrics.OrderSnapshot{
			Timestamp:     testNow.Add(-time.Hour),
			AvgOrderValue: decimal.NewFromFloat(v),
		})
	}
	return h
}

func TestOrderVolumeThresholdBoundary(t *testing.T) {
	engine := newTestEngine(nil)

	if got := engine.Detect(Current{Orders: orderSnap(10, 50)}); len(got) != 0 {
		t.Fatalf("order_count == 10 must not trigger, got %+v", got)
	}

	got := engine.Detect(Current{Orders: orderSnap(9, 50)})
	if len(got) != 1 {
		t.Fatalf("order_count == 9 must trigger exactly one anomaly, got %+v", got)
	}
	if got[0].Type != TypeOrderVolume || got[0].Severity != SeverityHigh {
		t.Fatalf("unexpected anomaly: %+v", got[0])
	}
}

func TestLowVolumeWithEmptyHistory(t *testing.T) {
	engine := newTestEngine(fakeHistory{})

	got := engine.Detect(Current{Orders: orderSnap(3, 50)})
	if len(got) != 1 {
		t.Fatalf("expected exactly one anomaly, got %+v", got)
	}
	if got[0].Type != TypeOrderVolume || got[0].Severity != SeverityHigh {
		t.Fatalf("unexpected anomaly: %+v", got[0])
	}
}

func TestOrderValueDriftRequiresHistory(t *testing.T) {
	engine := newTestEngine(fakeHistory{})

	// No baseline: any drift is invisible.
	got := engine.Detect(Current{Orders: orderSnap(100, 100000)})
	for _, a := range got {
		if a.Type == TypeOrderValue {
			t.Fatalf("drift rule must be skipped without history: %+v", a)
		}
	}
}

func TestOrderValueDriftThreshold(t *testing.T) {
	engine := newTestEngine(historyWithAvg(100, 100, 100))

	got := engine.Detect(Current{Orders: orderSnap(100, 140)})
	if len(got) != 1 || got[0].Type != TypeOrderValue || got[0].Severity != SeverityMedium {
		t.Fatalf("40%% drift must trigger order_value medium, got %+v", got)
	}

	if got := engine.Detect(Current{Orders: orderSnap(100, 120)}); len(got) != 0 {
		t.Fatalf("20%% drift must not trigger, got %+v", got)
	}
}

func TestOrderValueDriftSkippedOnZeroBaseline(t *testing.T) {
	engine := newTestEngine(historyWithAvg(0, 0))

	if got := engine.Detect(Current{Orders: orderSnap(100, 500)}); len(got) != 0 {
		t.Fatalf("zero baseline must skip the drift rule, got %+v", got)
	}
}

func TestProcessingTimeThreshold(t *testing.T) {
	engine := newTestEngine(nil)

	got := engine.Detect(Current{Transactions: &metrics.TransactionSnapshot{
		Timestamp:         testNow,
		AvgProcessingTime: 45,
	}})
	if len(got) != 1 || got[0].Type != TypeProcessingTime || got[0].Severity != SeverityHigh {
		t.Fatalf("45s processing time must trigger, got %+v", got)
	}

	got = engine.Detect(Current{Transactions: &metrics.TransactionSnapshot{
		Timestamp:         testNow,
		AvgProcessingTime: 30,
	}})
	if len(got) != 0 {
		t.Fatalf("exactly 30s must not trigger (strict >), got %+v", got)
	}
}

func TestFailureRateThresholdBoundary(t *testing.T) {
	engine := newTestEngine(nil)

	got := engine.Detect(Current{Transactions: &metrics.TransactionSnapshot{
		Timestamp:              testNow,
		FailedTransactions:     6,
		SuccessfulTransactions: 94,
	}})
	if len(got) != 1 || got[0].Type != TypeTransactionFailures || got[0].Severity != SeverityCritical {
		t.Fatalf("6%% failure rate must trigger critical, got %+v", got)
	}

	got = engine.Detect(Current{Transactions: &metrics.TransactionSnapshot{
		Timestamp:              testNow,
		FailedTransactions:     5,
		SuccessfulTransactions: 95,
	}})
	if len(got) != 0 {
		t.Fatalf("exactly 5%% must not trigger (strict >), got %+v", got)
	}
}

func TestFailureRateZeroDenominator(t *testing.T) {
	engine := newTestEngine(nil)

	got := engine.Detect(Current{Transactions: &metrics.TransactionSnapshot{
		Timestamp: testNow,
	}})
	if len(got) != 0 {
		t.Fatalf("zero transactions must not trigger the failure-rate rule, got %+v", got)
	}
}

func TestStaleRatioZeroDenominator(t *testing.T) {
	engine := newTestEngine(nil)

	got := engine.Detect(Current{Inventory: &metrics.InventorySnapshot{
		Timestamp:     testNow,
		TotalProducts: 0,
		StaleItems:    50,
	}})
	if len(got) != 0 {
		t.Fatalf("zero products must never trigger the stale-items rule, got %+v", got)
	}
}

func TestStaleRatioWithFreshSync(t *testing.T) {
	engine := newTestEngine(nil)

	sync := testNow
	got := engine.Detect(Current{Inventory: &metrics.InventorySnapshot{
		Timestamp:     testNow,
		TotalProducts: 100,
		StaleItems:    15,
		LatestSync:    &sync,
	}})
	if len(got) != 1 {
		t.Fatalf("expected exactly one anomaly, got %+v", got)
	}
	if got[0].Type != TypeInventorySync || got[0].Severity != SeverityMedium {
		t.Fatalf("15%% stale ratio must trigger inventory_sync medium, got %+v", got[0])
	}
}

func TestSyncDelayThreshold(t *testing.T) {
	engine := newTestEngine(nil)

	sync := testNow.Add(-400 * time.Second)
	got := engine.Detect(Current{Inventory: &metrics.InventorySnapshot{
		Timestamp:     testNow,
		TotalProducts: 100,
		StaleItems:    0,
		LatestSync:    &sync,
	}})
	if len(got) != 1 || got[0].Type != TypeSyncDelay || got[0].Severity != SeverityHigh {
		t.Fatalf("400s sync delay must trigger sync_delay high, got %+v", got)
	}
}

func TestSyncDelaySkippedWhenSyncMissing(t *testing.T) {
	engine := newTestEngine(nil)

	got := engine.Detect(Current{Inventory: &metrics.InventorySnapshot{
		Timestamp:     testNow,
		TotalProducts: 100,
	}})
	if len(got) != 0 {
		t.Fatalf("missing latest_sync must skip the rule, got %+v", got)
	}
}

func TestMissingCategoriesAreSkipped(t *testing.T) {
	engine := newTestEngine(nil)

	if got := engine.Detect(Current{}); len(got) != 0 {
		t.Fatalf("no snapshots must yield no anomalies, got %+v", got)
	}
}

func TestDetectOutputOrderingIsFixed(t *testing.T) {
	engine := newTestEngine(historyWithAvg(100))

	sync := testNow.Add(-400 * time.Second)
	current := Current{
		Orders: orderSnap(3, 200),
		Transactions: &metrics.TransactionSnapshot{
			Timestamp:              testNow,
			AvgProcessingTime:      45,
			FailedTransactions:     10,
			SuccessfulTransactions: 90,
		},
		Inventory: &metrics.InventorySnapshot{
			Timestamp:     testNow,
			TotalProducts: 100,
			StaleItems:    20,
			LatestSync:    &sync,
		},
	}

	got := engine.Detect(current)
	wantTypes := []string{
		TypeOrderVolume,
		TypeOrderValue,
		TypeProcessingTime,
		TypeTransactionFailures,
		TypeInventorySync,
		TypeSyncDelay,
	}
	if len(got) != len(wantTypes) {
		t.Fatalf("expected %d anomalies, got %+v", len(wantTypes), got)
	}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Fatalf("position %d: want %s, got %s", i, want, got[i].Type)
		}
	}
}

func TestDetectIsIdempotent(t *testing.T) {
	engine := newTestEngine(historyWithAvg(100, 110, 90))

	current := Current{Orders: orderSnap(5, 150)}
	first := engine.Detect(current)
	second := engine.Detect(current)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated evaluation diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

type panickingHistory struct{}

func (panickingHistory) OrderHistory() []metrics.OrderSnapshot {
	panic("history source exploded")
}

func TestCategoryPanicDoesNotAbortOthers(t *testing.T) {
	engine := newTestEngine(panickingHistory{})

	sync := testNow.Add(-400 * time.Second)
	got := engine.Detect(Current{
		Orders: orderSnap(100, 100),
		Inventory: &metrics.InventorySnapshot{
			Timestamp:     testNow,
			TotalProducts: 100,
			LatestSync:    &sync,
		},
	})

	if len(got) != 1 || got[0].Type != TypeSyncDelay {
		t.Fatalf("inventory checks must survive an orders-side panic, got %+v", got)
	}
}
