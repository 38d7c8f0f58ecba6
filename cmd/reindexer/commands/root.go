package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	universeFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reindexer",
	Short: "reIndexer - sector-rotated synthetic index portfolio simulator",
	Long: `reIndexer CLI

Simulates a rules-based sector rotation strategy: one price-weighted
synthetic index per sector, periodically restructured, combined through
a minimum-variance allocation that is periodically re-optimized.

Usage:
  go run ./cmd/reindexer [command]

Examples:
  go run ./cmd/reindexer backtest run --strategy strategy.yaml --universe universe.csv
  go run ./cmd/reindexer universe validate --universe universe.csv
  go run ./cmd/reindexer serve
  go run ./cmd/reindexer paper --schedule "30 16 * * MON-FRI"`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML file (default: built-in sector-minvar)")
	rootCmd.PersistentFlags().StringVar(&universeFile, "universe", "data/universe.csv", "sector universe CSV (ticker,sector)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
