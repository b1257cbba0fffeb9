package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/tradeledger/internal/backtest"
	"github.com/newthinker/tradeledger/internal/config"
	"github.com/newthinker/tradeledger/internal/logger"
	"github.com/newthinker/tradeledger/internal/pipeline"
	"github.com/newthinker/tradeledger/internal/storage/archive"
	"github.com/newthinker/tradeledger/internal/storage/postgres"
	"github.com/newthinker/tradeledger/internal/storage/record"
	"github.com/newthinker/tradeledger/internal/storage/sqlite"
)

// setup loads and validates the config and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.New(debug || cfg.Log.Development, level)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}
	return cfg, log, nil
}

// openStore connects the configured record store, applying the schema first
// when storage.records.migrate is set.
func openStore(ctx context.Context, cfg config.RecordsConfig, log *zap.Logger) (record.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory record store; records are lost on exit")
		return record.NewMemoryStore(), nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := postgres.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return postgres.NewStore(pool), nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown records driver %q", cfg.Driver)
	}
}

// openArchive returns the configured report archive, or nil when archiving
// is disabled.
func openArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "", config.ArchiveNone:
		return nil, nil
	case config.ArchiveLocalFS:
		return archive.NewLocalFS(cfg.Path)
	case config.ArchiveS3:
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

func backtestConfig(cfg config.BacktestConfig) backtest.Config {
	return backtest.Config{
		InitialEquity:        cfg.InitialEquity,
		RiskPerTrade:         cfg.RiskPerTrade,
		MaxConcurrentTrades:  cfg.MaxConcurrentTrades,
		TPMultipliers:        cfg.TPMultipliers,
		VolumeSpikeThreshold: cfg.VolumeSpikeThreshold,
		EMAFilter:            cfg.EMAFilter,
	}
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		SignalLimit: cfg.Storage.Records.SignalLimit,
		ResultLimit: cfg.Storage.Records.ResultLimit,
		Interval:    cfg.Refresh.Interval,
	}
}
