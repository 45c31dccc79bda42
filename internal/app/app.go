package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"pipeline-alerts/internal/alerting"
	"pipeline-alerts/internal/anomaly"
	"pipeline-alerts/internal/config"
	"pipeline-alerts/internal/metrics"
	"pipeline-alerts/internal/probe"
	"pipeline-alerts/internal/service"
	"pipeline-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.Config.Database.DSN == "" {
		return nil, errors.New("database.dsn is required; probes read from the commerce database")
	}
	return storage.NewPool(ctx, a.Config.Database)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// buildService wires probes, cache, engine, persistence, and alerting on
// top of one shared pool. The returned cleanup closes the pool.
func (a *App) buildService(ctx context.Context) (*service.Service, func(), error) {
	pool, err := a.openPool(ctx)
	if err != nil {
		return nil, nil, err
	}

	probes := probe.NewPostgres(pool, probe.PostgresOptions{
		StaleAfter: a.Config.Collector.StaleAfter,
		Timeout:    a.Config.Database.QueryTimeout,
	}, a.Logger)

	store := metrics.NewStore(probes, probes, probes, a.Config.Collector.CacheWindow, a.Logger)
	engine := anomaly.New(store, a.Config.Thresholds, a.Logger)

	anomalyStore := storage.NewStore(pool)
	svc := service.New(a.Config, store, engine, anomalyStore, a.newNotifier(), a.Logger)

	cleanup := func() {
		anomalyStore.Close()
	}
	return svc, cleanup, nil
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, cleanup, err := a.buildService(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	a.Logger.Info().Msg("starting pipeline watcher")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("pipeline watcher stopped")
	return nil
}

// ExportOptions hold parameters for exporting persisted anomalies.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions carry a synthetic snapshot set for a dry-run evaluation.
type SimulateOptions struct {
	OrderCount         int64
	AvgOrderValue      float64
	BaselineOrderValue float64
	ProcessingTime     float64
	Failed             int64
	Successful         int64
	TotalProducts      int64
	StaleItems         int64
	SyncAge            time.Duration
}
