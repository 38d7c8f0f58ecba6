package live

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quantfolio/reindexer/internal/backtest"
	"github.com/quantfolio/reindexer/internal/marketdata"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
	"github.com/quantfolio/reindexer/internal/universe"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// Broadcaster receives one notification per completed paper step. The
// API progress hub implements this shape.
type Broadcaster interface {
	Step(date time.Time, step int, equity float64)
}

// PaperLoop drives one engine decision cycle per scheduled tick against
// freshly hydrated bars. Execution stays simulated: positions live in
// the same simulator the backtest uses, so the loop is a forward test,
// not order routing.
type PaperLoop struct {
	cfg     *strategyconfig.Config
	uni     *universe.Universe
	store   *marketdata.Store
	fetcher *marketdata.Fetcher

	sim    *backtest.Simulator
	engine *backtest.Engine

	cron      *cron.Cron
	broadcast Broadcaster
	steps     int
	now       func() time.Time

	log *logger.Logger
}

// NewPaperLoop creates a paper loop. The fetcher may be nil when the
// bar store is kept current by other means.
func NewPaperLoop(cfg *strategyconfig.Config, uni *universe.Universe, store *marketdata.Store, fetcher *marketdata.Fetcher, log *logger.Logger) *PaperLoop {
	sim := backtest.NewSimulator(store, cfg.Backtest.CapitalBase, cfg.Commissions.TradeRate, log)
	return &PaperLoop{
		cfg:     cfg,
		uni:     uni,
		store:   store,
		fetcher: fetcher,
		sim:     sim,
		engine:  backtest.NewEngine(cfg, uni, sim, log),
		cron:    cron.New(),
		now:     time.Now,
		log:     log,
	}
}

// SetBroadcaster registers a per-step notification sink.
func (l *PaperLoop) SetBroadcaster(b Broadcaster) {
	l.broadcast = b
}

// Start validates the universe and schedules the daily tick. The
// schedule is a standard cron expression, e.g. "30 16 * * MON-FRI".
func (l *PaperLoop) Start(schedule string) error {
	if err := l.uni.Validate(l.sim, l.log); err != nil {
		return fmt.Errorf("universe validation: %w", err)
	}

	if _, err := l.cron.AddFunc(schedule, func() {
		if err := l.Tick(context.Background()); err != nil {
			l.log.WithError(err).Error("Paper step failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule paper loop: %w", err)
	}

	l.cron.Start()
	l.log.WithFields(map[string]interface{}{
		"schedule": schedule,
		"strategy": l.cfg.Meta.Name,
	}).Info("Paper loop started")

	return nil
}

// Stop stops the schedule and waits for a running tick to finish.
func (l *PaperLoop) Stop() {
	ctx := l.cron.Stop()
	<-ctx.Done()
	l.log.Info("Paper loop stopped")
}

// Tick runs one decision cycle at today's date. Weekend ticks and days
// without a fresh bar are skipped silently.
func (l *PaperLoop) Tick(ctx context.Context) error {
	today := l.now().UTC().Truncate(24 * time.Hour)
	if wd := today.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil
	}

	if l.fetcher != nil {
		if err := l.fetcher.Hydrate(ctx, l.store, l.uni.UniqueTickers()); err != nil {
			return fmt.Errorf("hydrate bars: %w", err)
		}
	}

	calendar := l.store.Calendar()
	if len(calendar) == 0 || calendar[len(calendar)-1].Before(today) {
		l.log.WithField("date", today.Format("2006-01-02")).Debug("No bar for today yet, skipping tick")
		return nil
	}

	l.sim.SetCursor(today)

	rec, err := l.engine.Step(ctx, today)
	if err != nil {
		return err
	}

	l.steps++
	if l.broadcast != nil {
		l.broadcast.Step(rec.Date, l.steps, rec.Equity)
	}

	l.log.WithFields(map[string]interface{}{
		"date":   rec.Date.Format("2006-01-02"),
		"equity": rec.Equity,
		"step":   l.steps,
	}).Info("Paper step complete")

	return nil
}

// Steps returns the number of completed ticks.
func (l *PaperLoop) Steps() int {
	return l.steps
}

// Equity returns the simulated portfolio equity.
func (l *PaperLoop) Equity() float64 {
	return l.sim.Equity()
}
