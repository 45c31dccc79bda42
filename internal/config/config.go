package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pipeline-alerts/internal/anomaly"
	"pipeline-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig          `mapstructure:"app"`
	Logging    logging.Config     `mapstructure:"logging"`
	Database   DatabaseConfig     `mapstructure:"database"`
	Collector  CollectorConfig    `mapstructure:"collector"`
	Thresholds anomaly.Thresholds `mapstructure:"thresholds"`
	Alerting   AlertingConfig     `mapstructure:"alerting"`
	Export     ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// CollectorConfig governs sampling cadence and retention.
type CollectorConfig struct {
	OrdersInterval       time.Duration `mapstructure:"orders_interval"`
	TransactionsInterval time.Duration `mapstructure:"transactions_interval"`
	InventoryInterval    time.Duration `mapstructure:"inventory_interval"`
	CacheWindow          time.Duration `mapstructure:"cache_window"`
	StaleAfter           time.Duration `mapstructure:"stale_after"`
	AlignToBucket        bool          `mapstructure:"align_to_bucket"`
	StartupDelay         time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey      int64         `mapstructure:"advisory_lock_key"`
}

// AlertingConfig defines anomaly delivery routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOREWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("collector.orders_interval", "1h")
	v.SetDefault("collector.transactions_interval", "1h")
	v.SetDefault("collector.inventory_interval", "5m")
	v.SetDefault("collector.cache_window", "24h")
	v.SetDefault("collector.stale_after", "5m")
	v.SetDefault("collector.align_to_bucket", true)
	v.SetDefault("collector.startup_delay", "0s")
	v.SetDefault("collector.advisory_lock_key", int64(0x73746F72))

	v.SetDefault("thresholds.orders.min_hourly_orders", int64(10))
	v.SetDefault("thresholds.orders.max_order_value_change", 0.30)
	v.SetDefault("thresholds.orders.min_unique_customers", int64(5))
	v.SetDefault("thresholds.transactions.max_processing_time", "30s")
	v.SetDefault("thresholds.transactions.max_failure_rate", 0.05)
	v.SetDefault("thresholds.inventory.max_stale_items_ratio", 0.10)
	v.SetDefault("thresholds.inventory.max_sync_delay", "300s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.query_timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Collector.OrdersInterval <= 0 {
		return fmt.Errorf("collector.orders_interval must be greater than zero")
	}
	if c.Collector.TransactionsInterval <= 0 {
		return fmt.Errorf("collector.transactions_interval must be greater than zero")
	}
	if c.Collector.InventoryInterval <= 0 {
		return fmt.Errorf("collector.inventory_interval must be greater than zero")
	}
	if c.Collector.CacheWindow <= 0 {
		return fmt.Errorf("collector.cache_window must be greater than zero")
	}
	if c.Collector.StaleAfter <= 0 {
		return fmt.Errorf("collector.stale_after must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
