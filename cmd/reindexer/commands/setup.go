package commands

import (
	"context"
	"fmt"

	"github.com/quantfolio/reindexer/internal/marketdata"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
	"github.com/quantfolio/reindexer/internal/universe"
	"github.com/quantfolio/reindexer/pkg/config"
	"github.com/quantfolio/reindexer/pkg/logger"
	"github.com/quantfolio/reindexer/pkg/redis"
)

// initProcess loads process configuration and the logger. Every command
// starts here.
func initProcess() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, logger.New(cfg), nil
}

// loadStrategy loads the strategy YAML, or the built-in defaults when
// no file was given.
func loadStrategy() (*strategyconfig.Config, error) {
	if strategyFile == "" {
		return strategyconfig.Default(), nil
	}

	cfg, err := strategyconfig.Load(strategyFile)
	if err != nil {
		return nil, fmt.Errorf("load strategy %s: %w", strategyFile, err)
	}
	return cfg, nil
}

// loadUniverse loads the sector universe CSV.
func loadUniverse() (*universe.Universe, error) {
	u, err := universe.Load("universe", universeFile)
	if err != nil {
		return nil, fmt.Errorf("load universe %s: %w", universeFile, err)
	}
	return u, nil
}

// loadStore loads local bar files and, when a remote endpoint is
// configured, hydrates any universe tickers that have no local series.
func loadStore(ctx context.Context, cfg *config.Config, uni *universe.Universe, log *logger.Logger) (*marketdata.Store, error) {
	store := marketdata.NewStore(log)
	if _, err := store.LoadDir(cfg.MarketData.BarDir); err != nil {
		return nil, fmt.Errorf("load bars from %s: %w", cfg.MarketData.BarDir, err)
	}

	if cfg.MarketData.RemoteURL != "" {
		rdb, err := redis.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		fetcher := marketdata.NewFetcher(cfg, redis.NewCache(rdb, "reindexer"), log)
		if err := fetcher.Hydrate(ctx, store, uni.UniqueTickers()); err != nil {
			return nil, fmt.Errorf("hydrate bars: %w", err)
		}
	}

	return store, nil
}
