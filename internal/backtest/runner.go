package backtest

import (
	"context"
	"fmt"

	"github.com/quantfolio/reindexer/internal/marketdata"
	"github.com/quantfolio/reindexer/internal/results"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
	"github.com/quantfolio/reindexer/internal/universe"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// Runner wires a strategy, a universe and a bar store into one
// simulated run over the configured date range.
type Runner struct {
	cfg   *strategyconfig.Config
	uni   *universe.Universe
	store *marketdata.Store
	log   *logger.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg *strategyconfig.Config, uni *universe.Universe, store *marketdata.Store, log *logger.Logger) *Runner {
	return &Runner{cfg: cfg, uni: uni, store: store, log: log}
}

// Run validates the universe, then steps the engine over every trading
// day in the backtest window that has a full lookback of history behind
// it. The recorder holds whatever steps completed, even on failure.
func (r *Runner) Run(ctx context.Context) (*results.Recorder, *Simulator, error) {
	sim := NewSimulator(r.store, r.cfg.Backtest.CapitalBase, r.cfg.Commissions.TradeRate, r.log)

	if err := r.uni.Validate(sim, r.log); err != nil {
		return nil, sim, fmt.Errorf("universe validation: %w", err)
	}

	engine := NewEngine(r.cfg, r.uni, sim, r.log)
	recorder := results.NewRecorder(r.uni.SectorLabels())

	start := r.cfg.StartDate()
	end := r.cfg.EndDate()
	calendar := r.store.Calendar()

	stepped := 0
	for i, date := range calendar {
		if err := ctx.Err(); err != nil {
			return recorder, sim, err
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		if i+1 < r.cfg.Index.LookbackBars {
			// Not enough history behind this bar yet.
			continue
		}

		sim.SetCursor(date)

		rec, err := engine.Step(ctx, date)
		if err != nil {
			return recorder, sim, err
		}
		if err := recorder.Append(rec); err != nil {
			return recorder, sim, err
		}
		stepped++
	}

	if stepped == 0 {
		return recorder, sim, fmt.Errorf("no trading days in %s..%s with %d bars of history",
			r.cfg.Backtest.Start, r.cfg.Backtest.End, r.cfg.Index.LookbackBars)
	}

	r.log.WithFields(map[string]interface{}{
		"steps":  stepped,
		"equity": sim.Equity(),
	}).Info("Backtest complete")

	return recorder, sim, nil
}
