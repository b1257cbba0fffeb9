package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/tradeledger/internal/core"
)

// Record store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Archive types.
const (
	ArchiveNone    = "none"
	ArchiveLocalFS = "localfs"
	ArchiveS3      = "s3"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	APIKey  string `mapstructure:"api_key"`
	MaxRuns int    `mapstructure:"max_runs"`
}

type StorageConfig struct {
	Records RecordsConfig `mapstructure:"records"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// RecordsConfig selects the store holding signals, results and
// configurations.
type RecordsConfig struct {
	Driver      string `mapstructure:"driver"` // "memory", "postgres" or "sqlite"
	DSN         string `mapstructure:"dsn"`    // For postgres
	Path        string `mapstructure:"path"`   // For sqlite
	SignalLimit int    `mapstructure:"signal_limit"`
	ResultLimit int    `mapstructure:"result_limit"`
	Migrate     bool   `mapstructure:"migrate"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "none", "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// RefreshConfig schedules background refresh cycles. Zero disables them.
type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// BacktestConfig holds the parameters used by the trigger.
type BacktestConfig struct {
	InitialEquity        float64   `mapstructure:"initial_equity"`
	RiskPerTrade         float64   `mapstructure:"risk_per_trade"`
	MaxConcurrentTrades  int       `mapstructure:"max_concurrent_trades"`
	TPMultipliers        []float64 `mapstructure:"tp_multipliers"`
	VolumeSpikeThreshold float64   `mapstructure:"volume_spike_threshold"`
	EMAFilter            bool      `mapstructure:"ema_filter"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from file on top of Defaults. An empty path
// yields the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Support environment variable overrides
	v.SetEnvPrefix("TRADELEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Defaults()
	registerDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// registerDefaults makes every key known to viper so that environment
// variables can override keys absent from the file.
func registerDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.api_key", cfg.Server.APIKey)
	v.SetDefault("server.max_runs", cfg.Server.MaxRuns)

	v.SetDefault("storage.records.driver", cfg.Storage.Records.Driver)
	v.SetDefault("storage.records.dsn", cfg.Storage.Records.DSN)
	v.SetDefault("storage.records.path", cfg.Storage.Records.Path)
	v.SetDefault("storage.records.signal_limit", cfg.Storage.Records.SignalLimit)
	v.SetDefault("storage.records.result_limit", cfg.Storage.Records.ResultLimit)
	v.SetDefault("storage.records.migrate", cfg.Storage.Records.Migrate)

	v.SetDefault("storage.archive.type", cfg.Storage.Archive.Type)
	v.SetDefault("storage.archive.path", cfg.Storage.Archive.Path)
	v.SetDefault("storage.archive.s3.bucket", "")
	v.SetDefault("storage.archive.s3.endpoint", "")
	v.SetDefault("storage.archive.s3.region", "")
	v.SetDefault("storage.archive.s3.access_key", "")
	v.SetDefault("storage.archive.s3.secret_key", "")
	v.SetDefault("storage.archive.s3.prefix", "")

	v.SetDefault("refresh.interval", cfg.Refresh.Interval)

	v.SetDefault("backtest.initial_equity", cfg.Backtest.InitialEquity)
	v.SetDefault("backtest.risk_per_trade", cfg.Backtest.RiskPerTrade)
	v.SetDefault("backtest.max_concurrent_trades", cfg.Backtest.MaxConcurrentTrades)
	v.SetDefault("backtest.tp_multipliers", cfg.Backtest.TPMultipliers)
	v.SetDefault("backtest.volume_spike_threshold", cfg.Backtest.VolumeSpikeThreshold)
	v.SetDefault("backtest.ema_filter", cfg.Backtest.EMAFilter)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.development", cfg.Log.Development)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Mode:    "release",
			MaxRuns: 100,
		},
		Storage: StorageConfig{
			Records: RecordsConfig{
				Driver:      DriverMemory,
				Path:        "tradeledger.db",
				SignalLimit: 500,
				ResultLimit: 1000,
			},
			Archive: ArchiveConfig{
				Type: ArchiveNone,
			},
		},
		Backtest: BacktestConfig{
			InitialEquity:        10000,
			RiskPerTrade:         2.0,
			MaxConcurrentTrades:  5,
			TPMultipliers:        []float64{2.0, 2.5, 3.0},
			VolumeSpikeThreshold: 1.5,
			EMAFilter:            true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxRuns < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_runs cannot be negative, got %d", c.Server.MaxRuns))
	}

	// Storage validation
	switch c.Storage.Records.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.Records.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.records.dsn required when driver is postgres"))
		}
	case DriverSQLite:
		if c.Storage.Records.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.records.path required when driver is sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown records driver %q", c.Storage.Records.Driver))
	}
	if c.Storage.Records.SignalLimit < 0 || c.Storage.Records.ResultLimit < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fetch limits cannot be negative"))
	}

	switch c.Storage.Archive.Type {
	case "", ArchiveNone:
	case ArchiveLocalFS:
		if c.Storage.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.archive.path required when type is localfs"))
		}
	case ArchiveS3:
		if c.Storage.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.archive.s3.bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.Storage.Archive.Type))
	}

	if c.Refresh.Interval < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("refresh.interval cannot be negative, got %s", c.Refresh.Interval))
	}

	// Backtest validation
	if c.Backtest.InitialEquity <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_equity must be positive, got %v", c.Backtest.InitialEquity))
	}
	if c.Backtest.RiskPerTrade <= 0 || c.Backtest.RiskPerTrade > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("risk_per_trade must be in (0, 100], got %v", c.Backtest.RiskPerTrade))
	}
	if c.Backtest.MaxConcurrentTrades < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_concurrent_trades must be at least 1, got %d", c.Backtest.MaxConcurrentTrades))
	}

	return nil
}
