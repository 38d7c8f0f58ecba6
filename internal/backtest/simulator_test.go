package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/reindexer/internal/marketdata"
	"github.com/quantfolio/reindexer/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func simStore(t *testing.T) *marketdata.Store {
	t.Helper()
	store := marketdata.NewStore(logger.Nop())
	require.NoError(t, store.AddSeries("AAA", []marketdata.Bar{
		{Date: day(2015, 1, 2), Close: 10},
		{Date: day(2015, 1, 5), Close: 10},
		{Date: day(2015, 1, 6), Close: 12},
	}))
	require.NoError(t, store.AddSeries("BBB", []marketdata.Bar{
		{Date: day(2015, 1, 2), Close: 20},
		{Date: day(2015, 1, 5), Close: 20},
	}))
	return store
}

func TestSimulator_SetTargetWeight(t *testing.T) {
	sim := NewSimulator(simStore(t), 1000, 0.01, logger.Nop())
	sim.SetCursor(day(2015, 1, 2))
	ctx := context.Background()

	require.NoError(t, sim.SetTargetWeight(ctx, "AAA", 0.5))

	// 500 dollars traded at 10: 50 shares, 5 commission.
	assert.InDelta(t, 50.0, sim.Position("AAA"), 1e-9)
	assert.InDelta(t, 495.0, sim.Cash(), 1e-9)
	assert.InDelta(t, 995.0, sim.Equity(), 1e-9)
}

func TestSimulator_LongOnly(t *testing.T) {
	sim := NewSimulator(simStore(t), 1000, 0, logger.Nop())
	sim.SetCursor(day(2015, 1, 2))

	err := sim.SetTargetWeight(context.Background(), "AAA", -0.1)
	assert.Error(t, err)
}

func TestSimulator_EquityMarksToMarket(t *testing.T) {
	sim := NewSimulator(simStore(t), 1000, 0, logger.Nop())
	sim.SetCursor(day(2015, 1, 5))
	require.NoError(t, sim.SetTargetWeight(context.Background(), "AAA", 1.0))

	// Fully invested at 10; close moves to 12 the next bar.
	assert.InDelta(t, 1000.0, sim.Equity(), 1e-9)
	sim.SetCursor(day(2015, 1, 6))
	assert.InDelta(t, 1200.0, sim.Equity(), 1e-9)
}

func TestSimulator_CurrentForwardFills(t *testing.T) {
	sim := NewSimulator(simStore(t), 1000, 0, logger.Nop())
	sim.SetCursor(day(2015, 1, 6))

	// BBB has no bar on the 6th: it prices off its last trade.
	prices, err := sim.Current(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 20}, prices)
}

func TestSimulator_ResolveAndCanTrade(t *testing.T) {
	sim := NewSimulator(simStore(t), 1000, 0, logger.Nop())

	handle, err := sim.Resolve("AAA")
	require.NoError(t, err)
	assert.Equal(t, "AAA", handle)
	assert.True(t, sim.CanTrade("AAA"))

	_, err = sim.Resolve("ZZZ")
	assert.Error(t, err)
	assert.False(t, sim.CanTrade("ZZZ"))
}

func TestSimulator_History(t *testing.T) {
	sim := NewSimulator(simStore(t), 1000, 0, logger.Nop())
	sim.SetCursor(day(2015, 1, 6))

	window, err := sim.History(context.Background(), []string{"AAA"}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, window.Bars())
	assert.Equal(t, 12.0, window.Prices[1][0])
}
