package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pipeline-alerts/internal/alerting"
	"pipeline-alerts/internal/anomaly"
	"pipeline-alerts/internal/config"
	"pipeline-alerts/internal/metrics"
	"pipeline-alerts/internal/scheduler"
	"pipeline-alerts/internal/storage"
)

// Service orchestrates collection, evaluation, persistence, and alerting.
// Each category is sampled on its own cadence; every tick evaluates only
// the snapshots gathered on that tick, so stale categories never re-alert.
type Service struct {
	store        *metrics.Store
	engine       *anomaly.Engine
	anomalyStore storage.AnomalyStore
	notifier     alerting.Notifier
	logger       zerolog.Logger

	ordersInterval       time.Duration
	transactionsInterval time.Duration
	inventoryInterval    time.Duration
	alignToStart         bool
	startupDelay         time.Duration

	environment string
	channels    []string
	alertsOn    bool
	locker      storage.AdvisoryLocker
	lockKey     int64
}

// New constructs the watcher service.
func New(cfg *config.Config, store *metrics.Store, engine *anomaly.Engine, anomalyStore storage.AnomalyStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := anomalyStore.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		store:                store,
		engine:               engine,
		anomalyStore:         anomalyStore,
		notifier:             notifier,
		logger:               logger.With().Str("component", "service").Logger(),
		ordersInterval:       cfg.Collector.OrdersInterval,
		transactionsInterval: cfg.Collector.TransactionsInterval,
		inventoryInterval:    cfg.Collector.InventoryInterval,
		alignToStart:         cfg.Collector.AlignToBucket,
		startupDelay:         cfg.Collector.StartupDelay,
		environment:          cfg.App.Environment,
		channels:             cfg.Alerting.Channels,
		alertsOn:             cfg.Alerting.Enabled,
		locker:               locker,
		lockKey:              cfg.Collector.AdvisoryLockKey,
	}
}

// Run starts the three collection loops and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.store == nil || s.engine == nil {
		return fmt.Errorf("service not fully configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := []struct {
		name     string
		interval time.Duration
		tick     scheduler.TickFunc
	}{
		{string(metrics.CategoryOrders), s.ordersInterval, s.OrdersTick},
		{string(metrics.CategoryTransactions), s.transactionsInterval, s.TransactionsTick},
		{string(metrics.CategoryInventory), s.inventoryInterval, s.InventoryTick},
	}

	errCh := make(chan error, len(jobs))
	for _, job := range jobs {
		sched := scheduler.New(scheduler.Options{
			Interval:     job.interval,
			AlignToStart: s.alignToStart,
			StartupDelay: s.startupDelay,
		}, s.logger.With().Str("job", job.name).Logger())

		tick := job.tick
		go func() {
			errCh <- sched.Run(ctx, tick)
		}()
	}

	// Schedulers only return on context cancellation; the first return
	// means shutdown.
	err := <-errCh
	cancel()
	return err
}

// OrdersTick collects the order snapshot and evaluates its rules.
func (s *Service) OrdersTick(ctx context.Context, tick time.Time) error {
	return s.collectAndEvaluate(ctx, tick, func(ctx context.Context) anomaly.Current {
		return anomaly.Current{Orders: s.store.CollectOrders(ctx)}
	})
}

// TransactionsTick collects the transaction snapshot and evaluates its rules.
func (s *Service) TransactionsTick(ctx context.Context, tick time.Time) error {
	return s.collectAndEvaluate(ctx, tick, func(ctx context.Context) anomaly.Current {
		return anomaly.Current{Transactions: s.store.CollectTransactions(ctx)}
	})
}

// InventoryTick collects the inventory snapshot and evaluates its rules.
func (s *Service) InventoryTick(ctx context.Context, tick time.Time) error {
	return s.collectAndEvaluate(ctx, tick, func(ctx context.Context) anomaly.Current {
		return anomaly.Current{Inventory: s.store.CollectInventory(ctx)}
	})
}

// RunOnce collects every category, evaluates the combined snapshot set, and
// reports. Used by the one-shot check command.
func (s *Service) RunOnce(ctx context.Context) []anomaly.Anomaly {
	current := anomaly.Current{
		Orders:       s.store.CollectOrders(ctx),
		Transactions: s.store.CollectTransactions(ctx),
		Inventory:    s.store.CollectInventory(ctx),
	}

	detected := s.engine.Detect(current)
	s.report(ctx, time.Now().UTC(), detected)
	return detected
}

func (s *Service) collectAndEvaluate(ctx context.Context, tick time.Time, collect func(ctx context.Context) anomaly.Current) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("tick", tick).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	current := collect(ctx)
	if current.Orders == nil && current.Transactions == nil && current.Inventory == nil {
		// Collection failure already logged at the store boundary.
		return nil
	}

	s.report(ctx, tick, s.engine.Detect(current))
	return nil
}

func (s *Service) report(ctx context.Context, detectedAt time.Time, detected []anomaly.Anomaly) {
	if len(detected) == 0 {
		s.logger.Debug().Time("detected_at", detectedAt).Msg("no anomalies detected")
		return
	}

	for _, a := range detected {
		s.logger.Warn().
			Str("type", a.Type).
			Str("severity", string(a.Severity)).
			Str("message", a.Message).
			Msg("anomaly detected")

		if s.anomalyStore != nil {
			rec := storage.AnomalyRecord{
				DetectedAt: detectedAt,
				Category:   categoryOf(a.Type),
				Type:       a.Type,
				Severity:   a.Severity,
				Message:    a.Message,
			}
			if _, err := s.anomalyStore.InsertAnomaly(ctx, rec); err != nil {
				s.logger.Error().Err(err).Str("type", a.Type).Msg("failed to persist anomaly record")
			}
		}
	}

	if s.alertsOn && s.notifier != nil {
		note := alerting.Notification{
			DetectedAt:  detectedAt,
			Environment: s.environment,
			Anomalies:   detected,
			Channels:    s.channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Time("detected_at", detectedAt).Msg("failed to dispatch alert")
		}
	}
}

func categoryOf(anomalyType string) string {
	switch anomalyType {
	case anomaly.TypeOrderVolume, anomaly.TypeOrderValue:
		return string(metrics.CategoryOrders)
	case anomaly.TypeProcessingTime, anomaly.TypeTransactionFailures:
		return string(metrics.CategoryTransactions)
	default:
		return string(metrics.CategoryInventory)
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
