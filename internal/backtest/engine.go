package backtest

import (
	"context"
	"errors"
	"time"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/internal/minvar"
	"github.com/quantfolio/reindexer/internal/setf"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
	"github.com/quantfolio/reindexer/internal/triggers"
	"github.com/quantfolio/reindexer/internal/universe"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// State is the engine lifecycle state.
type State int

const (
	Uninitialized State = iota
	FirstRun
	Steady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case FirstRun:
		return "first-run"
	case Steady:
		return "steady"
	}
	return "unknown"
}

// EquityReader is implemented by execution environments that can report
// portfolio equity. The simulator implements it; a live broker adapter
// may not.
type EquityReader interface {
	Equity() float64
}

// Engine is the per-step orchestrator. It owns the synthetic index per
// sector, the current portfolio weights and the trigger scheduler, and
// drives one decision cycle per simulated trading day: rebalance first,
// then restructure, both optional, both possible on the same day.
type Engine struct {
	cfg *strategyconfig.Config
	uni *universe.Universe
	md  contracts.MarketData

	sched *triggers.Scheduler
	opt   *minvar.Optimizer
	book  *Bookkeeper

	sectors   []string
	etfs      map[string]*setf.PriceWeightedETF
	portfolio map[string]float64

	state State
	log   *logger.Logger
}

// NewEngine creates an engine over a validated universe and an
// execution environment.
func NewEngine(cfg *strategyconfig.Config, uni *universe.Universe, md contracts.MarketData, log *logger.Logger) *Engine {
	return &Engine{
		cfg: cfg,
		uni: uni,
		md:  md,
		opt: minvar.New(minvar.Options{
			Tolerance:     cfg.Optimizer.Tolerance,
			MaxIterations: cfg.Optimizer.MaxIterations,
		}, log),
		book:      NewBookkeeper(cfg.Commissions),
		etfs:      make(map[string]*setf.PriceWeightedETF),
		portfolio: make(map[string]float64),
		state:     Uninitialized,
		log:       log,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Sectors returns the sector labels in matrix row order.
func (e *Engine) Sectors() []string {
	out := make([]string, len(e.sectors))
	copy(out, e.sectors)
	return out
}

// Index returns the synthetic index for a sector label, nil before
// initialization.
func (e *Engine) Index(sector string) *setf.PriceWeightedETF {
	return e.etfs[sector]
}

// PortfolioWeights returns a copy of the current sector weights.
func (e *Engine) PortfolioWeights() map[string]float64 {
	out := make(map[string]float64, len(e.portfolio))
	for k, v := range e.portfolio {
		out[k] = v
	}
	return out
}

// Step runs one decision cycle for the given trading day and returns
// its record. The first call initializes: it builds the synthetic
// indices, runs the initial optimization and moves to the initial
// targets, with no turnover logged because there is no old state to
// diff against.
func (e *Engine) Step(ctx context.Context, date time.Time) (*contracts.StepRecord, error) {
	switch e.state {
	case Uninitialized:
		return e.firstRun(ctx, date)
	case Steady:
		return e.steady(ctx, date)
	}
	return nil, e.fail("engine", date, errors.New("step during initialization"))
}

func (e *Engine) firstRun(ctx context.Context, date time.Time) (*contracts.StepRecord, error) {
	e.state = FirstRun
	e.sectors = e.uni.SectorLabels()

	for _, sector := range e.sectors {
		e.etfs[sector] = setf.New(sector, e.uni.Tickers(sector), e.log)
	}

	if err := e.refreshIndexParameters(ctx, date); err != nil {
		return nil, err
	}

	// Deterministic start: uniform initial guess, so a degenerate
	// zero-covariance window resolves to equal weights.
	uniform := make([]float64, len(e.sectors))
	for i := range uniform {
		uniform[i] = 1.0 / float64(len(e.sectors))
	}
	if err := e.optimize(date, uniform); err != nil {
		return nil, err
	}

	e.sched = triggers.New(e.cfg.Triggers.Restructure, e.cfg.Triggers.Rebalance, e.log)
	e.sched.Prime(date)

	if err := e.applyTargets(ctx, date); err != nil {
		return nil, err
	}

	rec := contracts.NewStepRecord(date, e.sectors)
	if err := e.fillRecord(ctx, rec); err != nil {
		return nil, err
	}

	e.state = Steady
	e.log.WithFields(map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"sectors": len(e.sectors),
	}).Info("Engine initialized")

	return rec, nil
}

func (e *Engine) steady(ctx context.Context, date time.Time) (*contracts.StepRecord, error) {
	rec := contracts.NewStepRecord(date, e.sectors)

	if e.sched.RebalanceDue(date) {
		if err := e.rebalance(ctx, date, rec); err != nil {
			return nil, err
		}
	}

	if e.sched.RestructureDue(date) {
		if err := e.restructure(ctx, date, rec); err != nil {
			return nil, err
		}
	}

	if err := e.fillRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// rebalance re-optimizes the sector allocation from freshly
// reconstructed index return series and trades to the new targets.
func (e *Engine) rebalance(ctx context.Context, date time.Time, rec *contracts.StepRecord) error {
	oldPortfolio := e.PortfolioWeights()

	if err := e.refreshIndexParameters(ctx, date); err != nil {
		return err
	}

	warmStart := make([]float64, len(e.sectors))
	for i, sector := range e.sectors {
		warmStart[i] = e.portfolio[sector]
	}
	if err := e.optimize(date, warmStart); err != nil {
		return err
	}

	if err := e.applyTargets(ctx, date); err != nil {
		return err
	}

	perSector := make(map[string]float64, len(e.sectors))
	for _, sector := range e.sectors {
		price, err := e.indexPrice(ctx, sector, nil)
		if err != nil {
			return e.fail("bookkeeper", date, err)
		}
		perSector[sector] = e.book.SectorTurnover(oldPortfolio[sector], e.portfolio[sector], price)
	}
	e.book.ApplyRebalance(rec, perSector)
	return nil
}

// restructure re-weights every synthetic index from spot prices and
// trades to the new targets under the latest portfolio weights.
func (e *Engine) restructure(ctx context.Context, date time.Time, rec *contracts.StepRecord) error {
	perSector := make(map[string]float64, len(e.sectors))

	for _, sector := range e.sectors {
		etf := e.etfs[sector]

		spot, err := e.md.Current(ctx, etf.Tickers())
		if err != nil {
			return e.fail("market-data", date, err)
		}

		// Old weights and the pre-trade index valuation must both be
		// captured before UpdateWeights mutates the basket.
		oldWeights := etf.Weights()
		preTradePrice := etf.CurrentPrice(spot, oldWeights)

		if err := etf.UpdateWeights(spot); err != nil {
			return e.fail("index-engine", date, err)
		}

		turnover, err := e.book.ComponentTurnover(oldWeights, etf.Weights(), preTradePrice)
		if err != nil {
			return e.fail("bookkeeper", date, err)
		}
		perSector[sector] = turnover
	}

	if err := e.applyTargets(ctx, date); err != nil {
		return err
	}

	e.book.ApplyRestructure(rec, perSector)
	return nil
}

// refreshIndexParameters reconstructs every sector index over a fresh
// historical window. Each reconstruction gets its own restructure
// predicate so wildcard de-duplication state never leaks between
// windows or into the live schedule.
func (e *Engine) refreshIndexParameters(ctx context.Context, date time.Time) error {
	for _, sector := range e.sectors {
		etf := e.etfs[sector]

		window, err := e.md.History(ctx, etf.Tickers(), e.cfg.Index.LookbackBars)
		if err != nil {
			return e.fail("market-data", date, err)
		}

		if err := etf.UpdateParameters(window, triggers.Predicate(e.cfg.Triggers.Restructure)); err != nil {
			return e.fail("index-engine", date, err)
		}
	}
	return nil
}

// optimize runs the minimum-variance solver over the sector return
// matrix. A non-convergence is retried with a fresh random initial
// guess up to the configured retry count before the step fails.
func (e *Engine) optimize(date time.Time, hint []float64) error {
	matrix := make([][]float64, len(e.sectors))
	for i, sector := range e.sectors {
		matrix[i] = e.etfs[sector].LogReturns()
	}

	var weights []float64
	var err error

	guess := hint
	for attempt := 0; attempt <= e.cfg.Optimizer.Retries; attempt++ {
		weights, err = e.opt.ComputeWeights(matrix, guess)
		if err == nil {
			break
		}

		var optErr *contracts.OptimizationFailure
		if !errors.As(err, &optErr) {
			return e.fail("optimizer", date, err)
		}

		e.log.WithFields(map[string]interface{}{
			"date":    date.Format("2006-01-02"),
			"attempt": attempt + 1,
		}).Warn("Optimizer did not converge, retrying with a fresh initial guess")
		guess = nil
	}
	if err != nil {
		return e.fail("optimizer", date, err)
	}

	for i, sector := range e.sectors {
		e.portfolio[sector] = weights[i]
	}
	return nil
}

// applyTargets hands per-asset target fractions to the execution layer:
// portfolio sector weight times the ticker's component weight inside
// its synthetic index.
func (e *Engine) applyTargets(ctx context.Context, date time.Time) error {
	for _, sector := range e.sectors {
		etf := e.etfs[sector]
		for _, ticker := range etf.Tickers() {
			fraction := e.portfolio[sector] * etf.WeightOf(ticker)
			if err := e.md.SetTargetWeight(ctx, ticker, fraction); err != nil {
				return e.fail("execution", date, err)
			}
		}
	}
	return nil
}

// fillRecord writes the always-populated step fields: per-sector index
// price, portfolio weight and equity.
func (e *Engine) fillRecord(ctx context.Context, rec *contracts.StepRecord) error {
	for _, sector := range e.sectors {
		price, err := e.indexPrice(ctx, sector, nil)
		if err != nil {
			return e.fail("market-data", rec.Date, err)
		}
		rec.IndexPrice[sector] = price
		rec.PortfolioWeight[sector] = e.portfolio[sector]
	}

	if er, ok := e.md.(EquityReader); ok {
		rec.Equity = er.Equity()
	}
	return nil
}

// indexPrice values one synthetic index at spot prices, under stored or
// override weights.
func (e *Engine) indexPrice(ctx context.Context, sector string, overrideWeights []float64) (float64, error) {
	etf := e.etfs[sector]
	spot, err := e.md.Current(ctx, etf.Tickers())
	if err != nil {
		return 0, err
	}
	return etf.CurrentPrice(spot, overrideWeights), nil
}

func (e *Engine) fail(component string, date time.Time, err error) error {
	return &contracts.StepError{Component: component, Date: date, Err: err}
}
