package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/tradeledger/internal/api"
	"github.com/newthinker/tradeledger/internal/backtest"
	"github.com/newthinker/tradeledger/internal/metrics"
	"github.com/newthinker/tradeledger/internal/pipeline"
	"github.com/newthinker/tradeledger/internal/runlog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tradeledger server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Storage.Records, log)
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	defer store.Close()

	arch, err := openArchive(cfg.Storage.Archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	runs := runlog.New(cfg.Server.MaxRuns, nil)

	runner := backtest.NewRunner(store, backtestConfig(cfg.Backtest), log.Named("backtest"))
	runner.SetRunLog(runs)
	if arch != nil {
		runner.SetArchive(arch)
	}
	if reg != nil {
		runner.SetMetrics(reg)
	}

	ledger := pipeline.New(store, pipelineConfig(cfg), log.Named("pipeline"))
	if reg != nil {
		ledger.SetMetrics(reg)
	}

	deps := api.Dependencies{
		Ledger:  ledger,
		Trigger: runner,
		Runs:    runs,
		Archive: arch,
		Metrics: reg,
	}
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	server, err := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		MetricsPath: metricsPath,
	}, deps, log.Named("http"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if cfg.Refresh.Interval > 0 {
		go func() {
			if err := ledger.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("scheduled refresh stopped", zap.Error(err))
			}
		}()
	} else if _, err := ledger.Refresh(ctx); err != nil {
		// Reports stay unavailable until a manual refresh succeeds.
		log.Warn("initial refresh failed", zap.Error(err))
	}

	log.Info("starting tradeledger server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("records", cfg.Storage.Records.Driver),
		zap.String("archive", cfg.Storage.Archive.Type),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down tradeledger server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
