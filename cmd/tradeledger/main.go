package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "tradeledger",
	Short: "tradeledger - trade ledger reporting and signal backtesting",
	Long: `tradeledger normalizes AI trade signals and backtest results into one
ledger, scores its data quality, computes dashboard performance metrics and
replays stored signals through a fixed-fractional risk backtest.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
