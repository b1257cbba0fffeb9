package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/tradeledger/internal/config"
	"github.com/newthinker/tradeledger/internal/storage/postgres"
	"github.com/newthinker/tradeledger/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the record store tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	records := cfg.Storage.Records

	switch records.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, records.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return err
		}
	case config.DriverSQLite:
		store, err := sqlite.Open(records.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("driver %q has no schema to migrate", records.Driver)
	}

	log.Info("migrations applied", zap.String("driver", records.Driver))
	return nil
}
