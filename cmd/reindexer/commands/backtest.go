package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfolio/reindexer/internal/backtest"
	"github.com/quantfolio/reindexer/internal/results"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
	"github.com/quantfolio/reindexer/pkg/config"
	"github.com/quantfolio/reindexer/pkg/database"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Historical simulation",
	Long: `Runs the sector rotation strategy over historical bars.

The strategy YAML fixes the simulation window, capital base, lookback,
trigger calendar, optimizer settings and commission rates; bar data
comes from BAR_DIR (and the remote endpoint, when configured).

Example:
  go run ./cmd/reindexer backtest run --strategy strategy.yaml --universe universe.csv
  go run ./cmd/reindexer backtest run --out results.csv --save`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		RunE:  runBacktest,
	}

	// Flags
	backtestOut  string
	backtestSave bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&backtestOut, "out", "", "write step records to a CSV file")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the run to PostgreSQL")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== reIndexer Backtest ===")

	cfg, log, err := initProcess()
	if err != nil {
		return err
	}

	strategy, err := loadStrategy()
	if err != nil {
		return err
	}

	uni, err := loadUniverse()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := loadStore(ctx, cfg, uni, log)
	if err != nil {
		return err
	}

	fmt.Printf("\nStrategy: %s\n", strategy.Meta.Name)
	fmt.Printf("Period:   %s ~ %s\n", strategy.Backtest.Start, strategy.Backtest.End)
	fmt.Printf("Capital:  %.0f\n", strategy.Backtest.CapitalBase)
	fmt.Printf("Sectors:  %d, tickers: %d\n\n", uni.SectorCount(), len(uni.UniqueTickers()))

	runner := backtest.NewRunner(strategy, uni, store, log)
	recorder, sim, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	summary := results.Summarize(recorder)
	printSummary(summary, sim.Equity())

	if backtestOut != "" {
		if err := results.WriteCSVFile(backtestOut, recorder); err != nil {
			return err
		}
		fmt.Printf("Step records written to %s\n", backtestOut)
	}

	if backtestSave {
		if err := persistRun(ctx, cfg, strategy, recorder, summary); err != nil {
			return err
		}
	}

	return nil
}

func printSummary(s results.Summary, equity float64) {
	fmt.Println("✅ Backtest Completed")
	fmt.Println()
	fmt.Printf("Steps:            %d\n", s.Steps)
	fmt.Printf("Final Equity:     %.2f\n", equity)
	fmt.Printf("Total Return:     %+.2f%%\n", s.TotalReturn*100)
	fmt.Printf("CAGR:             %+.2f%%\n", s.CAGR*100)
	fmt.Printf("Volatility:       %.2f%%\n", s.AnnualizedVol*100)
	fmt.Printf("Sharpe Ratio:     %.2f\n", s.Sharpe)
	fmt.Printf("Sortino Ratio:    %.2f\n", s.Sortino)
	fmt.Printf("Max Drawdown:     %.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("Total Turnover:   %.2f\n", s.TotalTurnover)
	fmt.Printf("Total Commission: %.2f\n", s.TotalCommission)
	fmt.Println()
}

func persistRun(ctx context.Context, cfg *config.Config, strategy *strategyconfig.Config, recorder *results.Recorder, summary results.Summary) error {
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	repo := results.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return err
	}

	runID, err := repo.CreateRun(ctx, strategy.Meta.Name, hash)
	if err != nil {
		return err
	}
	if err := repo.SaveSteps(ctx, runID, recorder.Records()); err != nil {
		return err
	}
	if err := repo.FinishRun(ctx, runID, summary); err != nil {
		return err
	}

	fmt.Printf("Run saved as id %d (config %s)\n", runID, hash[:12])
	return nil
}
