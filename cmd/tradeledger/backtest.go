package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradeledger/internal/backtest"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest over every stored signal",
	Long: `Replay every stored signal through the configured risk model, replace the
stored backtest results with the simulated trades and print the summary.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	store, err := openStore(ctx, cfg.Storage.Records, log)
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	defer store.Close()

	arch, err := openArchive(cfg.Storage.Archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}

	runner := backtest.NewRunner(store, backtestConfig(cfg.Backtest), log)
	if arch != nil {
		runner.SetArchive(arch)
	}

	out, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println("=== Backtest Summary ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run ID:\t%s\n", out.RunID)
	fmt.Fprintf(w, "Trades:\t%d\n", out.Summary.TotalTrades)
	fmt.Fprintf(w, "Winning:\t%d\n", out.Summary.WinningTrades)
	fmt.Fprintf(w, "Losing:\t%d\n", out.Summary.LosingTrades)
	fmt.Fprintf(w, "Win rate:\t%s%%\n", out.Summary.WinRate)
	fmt.Fprintf(w, "Total P&L:\t%s\n", out.Summary.TotalPnL)
	fmt.Fprintf(w, "Final equity:\t%.2f\n", out.Summary.FinalEquity)
	if out.ArchiveKey != "" {
		fmt.Fprintf(w, "Report:\t%s\n", out.ArchiveKey)
	}
	return w.Flush()
}
