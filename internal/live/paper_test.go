package live

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/reindexer/internal/marketdata"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
	"github.com/quantfolio/reindexer/internal/universe"
	"github.com/quantfolio/reindexer/pkg/logger"
)

type recordingBroadcaster struct {
	dates  []time.Time
	equity []float64
}

func (b *recordingBroadcaster) Step(date time.Time, step int, equity float64) {
	b.dates = append(b.dates, date)
	b.equity = append(b.equity, equity)
}

func paperFixture(t *testing.T) (*PaperLoop, *recordingBroadcaster) {
	t.Helper()

	store := marketdata.NewStore(logger.Nop())
	var dates []time.Time
	for d := time.Date(2015, 1, 5, 0, 0, 0, 0, time.UTC); !d.After(time.Date(2015, 3, 2, 0, 0, 0, 0, time.UTC)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
	}
	for ticker, px := range map[string]float64{"AAA": 10, "BBB": 30, "CCC": 20, "DDD": 20} {
		bars := make([]marketdata.Bar, len(dates))
		for i, d := range dates {
			bars[i] = marketdata.Bar{Date: d, Close: px}
		}
		require.NoError(t, store.AddSeries(ticker, bars))
	}

	uni, err := universe.Parse("test", strings.NewReader(
		"ticker,sector\nAAA,tech\nBBB,tech\nCCC,energy\nDDD,energy\n"))
	require.NoError(t, err)

	cfg := strategyconfig.Default()
	cfg.Backtest.CapitalBase = 1e6
	cfg.Index.LookbackBars = 5
	cfg.Commissions.TradeRate = 0

	loop := NewPaperLoop(cfg, uni, store, nil, logger.Nop())
	b := &recordingBroadcaster{}
	loop.SetBroadcaster(b)
	return loop, b
}

func TestPaperLoop_Tick(t *testing.T) {
	loop, b := paperFixture(t)
	require.NoError(t, loop.uni.Validate(loop.sim, logger.Nop()))

	// Monday with a fresh bar.
	loop.now = func() time.Time { return time.Date(2015, 3, 2, 18, 0, 0, 0, time.UTC) }

	require.NoError(t, loop.Tick(context.Background()))
	assert.Equal(t, 1, loop.Steps())
	assert.InDelta(t, 1e6, loop.Equity(), 1e-3)

	require.Len(t, b.dates, 1)
	assert.Equal(t, time.Date(2015, 3, 2, 0, 0, 0, 0, time.UTC), b.dates[0])
}

func TestPaperLoop_SkipsWeekend(t *testing.T) {
	loop, _ := paperFixture(t)

	loop.now = func() time.Time { return time.Date(2015, 2, 28, 12, 0, 0, 0, time.UTC) } // Saturday

	require.NoError(t, loop.Tick(context.Background()))
	assert.Equal(t, 0, loop.Steps())
}

func TestPaperLoop_SkipsWithoutFreshBar(t *testing.T) {
	loop, _ := paperFixture(t)

	// Tuesday after the last loaded bar: no close yet, no step.
	loop.now = func() time.Time { return time.Date(2015, 3, 3, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, loop.Tick(context.Background()))
	assert.Equal(t, 0, loop.Steps())
}

func TestPaperLoop_StartRejectsBadSchedule(t *testing.T) {
	loop, _ := paperFixture(t)
	assert.Error(t, loop.Start("not a cron spec"))
}
