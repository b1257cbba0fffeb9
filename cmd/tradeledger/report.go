package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/newthinker/tradeledger/internal/pipeline"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute the dashboard and data quality reports once",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the full snapshot as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
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

	snap, err := pipeline.New(store, pipelineConfig(cfg), log).Refresh(ctx)
	if err != nil {
		return err
	}

	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return printReport(os.Stdout, snap)
}

func printReport(out io.Writer, snap *pipeline.Snapshot) error {
	m := snap.Metrics
	q := snap.Quality

	fmt.Fprintln(out, "=== Performance ===")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Closed trades:\t%d\n", m.TotalTrades)
	fmt.Fprintf(w, "Win rate:\t%.1f%%\n", m.WinRate)
	fmt.Fprintf(w, "Total P&L:\t%.2f\n", m.TotalPnL)
	fmt.Fprintf(w, "Final equity:\t%.2f\n", m.FinalEquity)
	fmt.Fprintf(w, "Total return:\t%.2f%%\n", m.TotalReturn)
	fmt.Fprintf(w, "Max drawdown:\t%.2f%%\n", m.MaxDrawdown)
	fmt.Fprintf(w, "Profit factor:\t%.2f\n", m.ProfitFactor)
	fmt.Fprintf(w, "Sharpe ratio:\t%.2f\n", m.SharpeRatio)
	fmt.Fprintf(w, "Avg win / loss:\t%.2f / %.2f\n", m.AvgWin, m.AvgLoss)
	fmt.Fprintf(w, "Largest win / loss:\t%.2f / %.2f\n", m.LargestWin, m.LargestLoss)
	fmt.Fprintf(w, "Avg duration:\t%.1fh\n", m.AvgTradeDuration)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Data Quality ===")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Records:\t%d\n", q.TotalRecords)
	fmt.Fprintf(w, "Valid:\t%d\n", q.ValidRecords)
	fmt.Fprintf(w, "Duplicates:\t%d\n", q.Duplicates)
	fmt.Fprintf(w, "Integrity score:\t%d\n", q.DataIntegrityScore)

	fields := make([]string, 0, len(q.MissingValues))
	for f := range q.MissingValues {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if n := q.MissingValues[f]; n > 0 {
			fmt.Fprintf(w, "Missing %s:\t%d\n", f, n)
		}
	}
	return w.Flush()
}
