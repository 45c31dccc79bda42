package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pipeline-alerts/internal/alerting"
	"pipeline-alerts/internal/anomaly"
	"pipeline-alerts/internal/config"
	"pipeline-alerts/internal/metrics"
	"pipeline-alerts/internal/probe"
	"pipeline-alerts/internal/storage"
)

type stubSources struct {
	orderStats     probe.OrderStats
	orderErr       error
	txnStats       probe.TransactionStats
	txnErr         error
	inventoryStats probe.InventoryStats
	inventoryErr   error
}

func (s *stubSources) FetchOrderStats(ctx context.Context) (probe.OrderStats, error) {
	return s.orderStats, s.orderErr
}

func (s *stubSources) FetchTransactionStats(ctx context.Context) (probe.TransactionStats, error) {
	return s.txnStats, s.txnErr
}

func (s *stubSources) FetchInventoryStats(ctx context.Context) (probe.InventoryStats, error) {
	return s.inventoryStats, s.inventoryErr
}

type memoryAnomalyStore struct {
	inserted []storage.AnomalyRecord
	failWith error
}

func (m *memoryAnomalyStore) InsertAnomaly(ctx context.Context, rec storage.AnomalyRecord) (storage.AnomalyRecord, error) {
	if m.failWith != nil {
		return storage.AnomalyRecord{}, m.failWith
	}
	rec.ID = int64(len(m.inserted) + 1)
	m.inserted = append(m.inserted, rec)
	return rec, nil
}

func (m *memoryAnomalyStore) ListAnomaliesBetween(ctx context.Context, from, to time.Time) ([]storage.AnomalyRecord, error) {
	return m.inserted, nil
}

func (m *memoryAnomalyStore) ListRecentAnomalies(ctx context.Context, limit int) ([]storage.AnomalyRecord, error) {
	return m.inserted, nil
}

func (m *memoryAnomalyStore) DeleteAnomaliesBefore(ctx context.Context, olderThan time.Time) error {
	return nil
}

func (m *memoryAnomalyStore) CountAnomalies(ctx context.Context) (int64, error) {
	return int64(len(m.inserted)), nil
}

type recordingNotifier struct {
	notes []alerting.Notification
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.notes = append(r.notes, note)
	return nil
}

func testConfig(alertsOn bool) *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "storewatcher", Environment: "test"},
		Collector: config.CollectorConfig{
			OrdersInterval:       time.Hour,
			TransactionsInterval: time.Hour,
			InventoryInterval:    5 * time.Minute,
			CacheWindow:          24 * time.Hour,
		},
		Thresholds: anomaly.DefaultThresholds(),
		Alerting: config.AlertingConfig{
			Enabled:  alertsOn,
			Channels: []string{"telegram"},
		},
	}
}

func newTestService(src *stubSources, anomalies storage.AnomalyStore, notifier alerting.Notifier, alertsOn bool) *Service {
	store := metrics.NewStore(src, src, src, 24*time.Hour, zerolog.Nop())
	engine := anomaly.New(store, anomaly.DefaultThresholds(), zerolog.Nop())
	return New(testConfig(alertsOn), store, engine, anomalies, notifier, zerolog.Nop())
}

func TestRunOncePersistsAndNotifies(t *testing.T) {
	sync := time.Now().UTC().Add(-time.Minute)
	src := &stubSources{
		orderStats: probe.OrderStats{OrderCount: 3, AvgOrderValue: decimal.NewFromInt(50)},
		txnStats:   probe.TransactionStats{FailedTransactions: 6, SuccessfulTransactions: 94},
		inventoryStats: probe.InventoryStats{
			TotalProducts: 100,
			StaleItems:    0,
			LatestSync:    &sync,
		},
	}
	anomalies := &memoryAnomalyStore{}
	notifier := &recordingNotifier{}
	svc := newTestService(src, anomalies, notifier, true)

	detected := svc.RunOnce(context.Background())
	if len(detected) != 2 {
		t.Fatalf("expected order_volume and transaction_failures, got %+v", detected)
	}
	if detected[0].Type != anomaly.TypeOrderVolume || detected[1].Type != anomaly.TypeTransactionFailures {
		t.Fatalf("unexpected detection order: %+v", detected)
	}

	if len(anomalies.inserted) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(anomalies.inserted))
	}
	if anomalies.inserted[0].Category != "orders" || anomalies.inserted[1].Category != "transactions" {
		t.Fatalf("category mapping wrong: %+v", anomalies.inserted)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one batched notification, got %d", len(notifier.notes))
	}
	if got := len(notifier.notes[0].Anomalies); got != 2 {
		t.Fatalf("notification should carry both anomalies, got %d", got)
	}
}

func TestRunOnceSkipsFailedCategories(t *testing.T) {
	src := &stubSources{
		orderErr:       errors.New("connection refused"),
		txnErr:         errors.New("connection refused"),
		inventoryStats: probe.InventoryStats{TotalProducts: 100, StaleItems: 50},
	}
	anomalies := &memoryAnomalyStore{}
	svc := newTestService(src, anomalies, nil, false)

	detected := svc.RunOnce(context.Background())
	if len(detected) != 1 || detected[0].Type != anomaly.TypeInventorySync {
		t.Fatalf("only the inventory rules should have run, got %+v", detected)
	}
}

func TestNoNotificationWhenAlertingDisabled(t *testing.T) {
	src := &stubSources{
		orderStats: probe.OrderStats{OrderCount: 0, AvgOrderValue: decimal.Zero},
	}
	notifier := &recordingNotifier{}
	svc := newTestService(src, &memoryAnomalyStore{}, notifier, false)

	if detected := svc.RunOnce(context.Background()); len(detected) == 0 {
		t.Fatal("zero orders should trigger the volume rule")
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("alerting disabled: nothing should be dispatched, got %d", len(notifier.notes))
	}
}

func TestPersistenceFailureDoesNotAbortReporting(t *testing.T) {
	src := &stubSources{
		orderStats: probe.OrderStats{OrderCount: 0, AvgOrderValue: decimal.Zero},
	}
	anomalies := &memoryAnomalyStore{failWith: errors.New("table missing")}
	notifier := &recordingNotifier{}
	svc := newTestService(src, anomalies, notifier, true)

	if detected := svc.RunOnce(context.Background()); len(detected) != 1 {
		t.Fatalf("detection must not depend on persistence, got %+v", detected)
	}
	if len(notifier.notes) != 1 {
		t.Fatal("notification should still be dispatched when persistence fails")
	}
}

func TestOrdersTickEvaluatesOnlyOrders(t *testing.T) {
	src := &stubSources{
		orderStats:     probe.OrderStats{OrderCount: 3, AvgOrderValue: decimal.NewFromInt(50)},
		inventoryStats: probe.InventoryStats{TotalProducts: 100, StaleItems: 50},
	}
	anomalies := &memoryAnomalyStore{}
	svc := newTestService(src, anomalies, nil, false)

	if err := svc.OrdersTick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	if len(anomalies.inserted) != 1 || anomalies.inserted[0].Type != anomaly.TypeOrderVolume {
		t.Fatalf("orders tick must evaluate only the orders rules, got %+v", anomalies.inserted)
	}
}

func TestTickWithCollectionFailureIsQuiet(t *testing.T) {
	src := &stubSources{orderErr: errors.New("no rows")}
	anomalies := &memoryAnomalyStore{}
	svc := newTestService(src, anomalies, nil, false)

	if err := svc.OrdersTick(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("collection failure must not error the tick: %v", err)
	}
	if len(anomalies.inserted) != 0 {
		t.Fatalf("nothing should be persisted, got %+v", anomalies.inserted)
	}
}
