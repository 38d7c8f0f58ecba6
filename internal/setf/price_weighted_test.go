package setf

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/internal/triggers"
	"github.com/quantfolio/reindexer/pkg/logger"
)

func window(tickers []string, rows [][]float64) *contracts.PriceWindow {
	dates := make([]time.Time, len(rows))
	start := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return &contracts.PriceWindow{Dates: dates, Tickers: tickers, Prices: rows}
}

func never(time.Time) bool { return false }

func TestUpdateParameters_FlatPrices(t *testing.T) {
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())

	rows := [][]float64{
		{10, 30},
		{10, 30},
		{10, 30},
		{10, 30},
	}

	require.NoError(t, etf.UpdateParameters(window(etf.Tickers(), rows), never))

	assert.Equal(t, 0.0, etf.Variance())
	assert.Equal(t, 0.0, etf.PeriodLogReturn())

	// Price-weighted: 10/40 and 30/40
	w := etf.Weights()
	assert.InDelta(t, 0.25, w[0], 1e-12)
	assert.InDelta(t, 0.75, w[1], 1e-12)
}

func TestUpdateParameters_WeightsSumToOne(t *testing.T) {
	etf := New("energy", []string{"AAA", "BBB", "CCC"}, logger.Nop())

	rows := [][]float64{
		{12.5, 88.25, 41.0},
		{13.0, 87.00, 42.5},
		{12.75, 89.50, 40.0},
	}

	require.NoError(t, etf.UpdateParameters(window(etf.Tickers(), rows), never))

	sum := 0.0
	for _, w := range etf.Weights() {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestUpdateParameters_LogReturns(t *testing.T) {
	etf := New("tech", []string{"AAA"}, logger.Nop())

	rows := [][]float64{{100}, {110}, {121}}
	require.NoError(t, etf.UpdateParameters(window(etf.Tickers(), rows), never))

	rets := etf.LogReturns()
	require.Len(t, rets, 2)
	assert.InDelta(t, math.Log(1.1), rets[0], 1e-12)
	assert.InDelta(t, math.Log(1.1), rets[1], 1e-12)
	assert.InDelta(t, math.Log(1.21), etf.PeriodLogReturn(), 1e-12)
}

func TestUpdateParameters_NoRebasingAcrossReweight(t *testing.T) {
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())

	rows := [][]float64{
		{10, 30}, // weights fixed here: 0.25, 0.75
		{20, 30},
		{20, 30}, // reweight here: 0.4, 0.6
		{20, 30},
	}

	third := time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC)
	trigger := func(d time.Time) bool { return d.Equal(third) }

	require.NoError(t, etf.UpdateParameters(window(etf.Tickers(), rows), trigger))

	series := etf.PriceSeries()
	// Bar 0: 0.25*10 + 0.75*30 = 25
	assert.InDelta(t, 25.0, series[0], 1e-12)
	// Bar 1: same weights, 0.25*20 + 0.75*30 = 27.5
	assert.InDelta(t, 27.5, series[1], 1e-12)
	// Bar 2: reweighted to 0.4/0.6, level jumps to 0.4*20 + 0.6*30 = 26
	// (no rebasing constant is applied)
	assert.InDelta(t, 26.0, series[2], 1e-12)
	assert.InDelta(t, 26.0, series[3], 1e-12)
}

func TestUpdateParameters_WindowOpensInsideWildcardWeek(t *testing.T) {
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())

	// The window opens on Tuesday the 6th, already inside a week-1
	// wildcard's day window. Bar zero must consume the month, so no
	// second reweight fires on the 7th.
	dates := []time.Time{
		time.Date(2015, 1, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2015, 1, 7, 0, 0, 0, 0, time.UTC),
		time.Date(2015, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	rows := [][]float64{
		{10, 30}, // weights fixed here: 0.25, 0.75
		{5, 35},
		{5, 35},
	}
	win := &contracts.PriceWindow{Dates: dates, Tickers: etf.Tickers(), Prices: rows}

	restructureAt := triggers.Predicate(triggers.Spec{WeekOfMonth: 1, DayOfWeek: triggers.Wildcard})
	require.NoError(t, etf.UpdateParameters(win, restructureAt))

	series := etf.PriceSeries()
	assert.InDelta(t, 25.0, series[0], 1e-12)
	// Bar 1 under the held weights: 0.25*5 + 0.75*35 = 27.5. A spurious
	// reweight to 0.125/0.875 would put it at 31.25.
	assert.InDelta(t, 27.5, series[1], 1e-12)
	assert.InDelta(t, 27.5, series[2], 1e-12)

	assert.InDelta(t, 0.25, etf.WeightOf("AAA"), 1e-12)
	assert.InDelta(t, 0.75, etf.WeightOf("BBB"), 1e-12)
}

func TestUpdateParameters_FillsGaps(t *testing.T) {
	nan := math.NaN()
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())

	rows := [][]float64{
		{nan, 30}, // leading gap: backward-filled from 12
		{12, nan}, // interior gap: forward-filled from 30
		{14, 32},
		{nan, 34}, // trailing gap: forward-filled from 14
	}

	require.NoError(t, etf.UpdateParameters(window(etf.Tickers(), rows), never))

	series := etf.PriceSeries()
	for i, level := range series {
		assert.False(t, math.IsNaN(level), "bar %d is NaN", i)
	}

	// Bar 0 weights from filled prices (12, 30): level = 12²/42 + 30²/42
	want := (12.0*12.0 + 30.0*30.0) / 42.0
	assert.InDelta(t, want, series[0], 1e-12)
}

func TestUpdateParameters_AllMissingColumnFails(t *testing.T) {
	nan := math.NaN()
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())

	rows := [][]float64{
		{nan, 30},
		{nan, 31},
		{nan, 32},
	}

	err := etf.UpdateParameters(window(etf.Tickers(), rows), never)
	require.Error(t, err)

	var integrity *contracts.DataIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "tech", integrity.Sector)
}

func TestUpdateParameters_TooFewBars(t *testing.T) {
	etf := New("tech", []string{"AAA"}, logger.Nop())

	err := etf.UpdateParameters(window(etf.Tickers(), [][]float64{{100}}), never)

	var shape *contracts.ShapeMismatchError
	require.ErrorAs(t, err, &shape)
}

func TestUpdateWeights_Idempotent(t *testing.T) {
	etf := New("tech", []string{"AAA", "BBB", "CCC"}, logger.Nop())

	prices := []float64{25, 50, 25}
	require.NoError(t, etf.UpdateWeights(prices))
	first := etf.Weights()

	require.NoError(t, etf.UpdateWeights(prices))
	second := etf.Weights()

	assert.Equal(t, first, second)
	assert.InDelta(t, 0.25, second[0], 1e-12)
	assert.InDelta(t, 0.50, second[1], 1e-12)
}

func TestUpdateWeights_TickerLookup(t *testing.T) {
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())

	require.NoError(t, etf.UpdateWeights([]float64{40, 60}))

	assert.InDelta(t, 0.4, etf.WeightOf("AAA"), 1e-12)
	assert.InDelta(t, 0.6, etf.WeightOf("BBB"), 1e-12)
	assert.Equal(t, 0.0, etf.WeightOf("ZZZ"))
}

func TestUpdateWeights_RejectsBadPrices(t *testing.T) {
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())

	assert.Error(t, etf.UpdateWeights([]float64{40}))
	assert.Error(t, etf.UpdateWeights([]float64{40, math.NaN()}))
	assert.Error(t, etf.UpdateWeights([]float64{40, -1}))
}

func TestCurrentPrice_OverrideWeights(t *testing.T) {
	etf := New("tech", []string{"AAA", "BBB"}, logger.Nop())
	require.NoError(t, etf.UpdateWeights([]float64{40, 60}))

	spot := []float64{42, 58}

	live := etf.CurrentPrice(spot, nil)
	assert.InDelta(t, 0.4*42+0.6*58, live, 1e-12)

	// Valuing under hypothetical pre-trade weights
	old := etf.CurrentPrice(spot, []float64{0.5, 0.5})
	assert.InDelta(t, 50.0, old, 1e-12)
}
