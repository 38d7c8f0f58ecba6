package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfolio/reindexer/internal/live"
	"github.com/quantfolio/reindexer/internal/marketdata"
	"github.com/quantfolio/reindexer/pkg/redis"
)

// paperCmd represents the paper command
var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Run the daily paper-trading loop",
	Long: `Steps the strategy once per schedule tick against freshly fetched
bars. Execution stays simulated; no orders leave the process.

Example:
  go run ./cmd/reindexer paper --schedule "30 16 * * MON-FRI"`,
	RunE: runPaper,
}

var paperSchedule string

func init() {
	rootCmd.AddCommand(paperCmd)
	paperCmd.Flags().StringVar(&paperSchedule, "schedule", "30 16 * * MON-FRI", "cron schedule for the daily tick")
}

func runPaper(cmd *cobra.Command, args []string) error {
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

	store := marketdata.NewStore(log)
	if _, err := store.LoadDir(cfg.MarketData.BarDir); err != nil {
		return fmt.Errorf("load bars from %s: %w", cfg.MarketData.BarDir, err)
	}

	var fetcher *marketdata.Fetcher
	if cfg.MarketData.RemoteURL != "" {
		rdb, err := redis.New(cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		fetcher = marketdata.NewFetcher(cfg, redis.NewCache(rdb, "reindexer"), log)
	}

	loop := live.NewPaperLoop(strategy, uni, store, fetcher, log)
	if err := loop.Start(paperSchedule); err != nil {
		return err
	}

	fmt.Printf("Paper loop running (%s), strategy %s. Ctrl-C to stop.\n", paperSchedule, strategy.Meta.Name)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	loop.Stop()
	fmt.Printf("Stopped after %d steps, equity %.2f\n", loop.Steps(), loop.Equity())
	return nil
}
