package setf

import (
	"fmt"
	"math"
	"time"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// PriceWeightedETF models a basket of assets as one price-weighted
// synthetic index, re-weighted at restructure boundaries. It carries two
// distinct weight computations: a backward-looking reconstruction over a
// historical window (UpdateParameters), which produces the return and
// variance series the optimizer consumes, and a forward-looking live
// re-weighting from spot prices (UpdateWeights) fired by the scheduler.
type PriceWeightedETF struct {
	label   string
	tickers []string

	allocWeights   []float64
	weightByTicker map[string]float64

	dates           []time.Time
	priceSeries     []float64
	logReturns      []float64
	periodLogReturn float64
	variance        float64

	log *logger.Logger
}

// New creates a synthetic ETF for one sector basket.
func New(label string, tickers []string, log *logger.Logger) *PriceWeightedETF {
	return &PriceWeightedETF{
		label:          label,
		tickers:        append([]string(nil), tickers...),
		weightByTicker: make(map[string]float64, len(tickers)),
		log:            log,
	}
}

// Label returns the sector label.
func (e *PriceWeightedETF) Label() string { return e.label }

// Tickers returns the component tickers in basket order.
func (e *PriceWeightedETF) Tickers() []string {
	out := make([]string, len(e.tickers))
	copy(out, e.tickers)
	return out
}

// UpdateParameters recomputes the index price series, log returns,
// period log return and variance from a historical window. restructureAt
// must be a fresh trigger predicate: it is evaluated once per bar in
// chronological order and may carry wildcard de-duplication state.
//
// The index level is the dot product of the currently active allocation
// weights and the bar's raw asset prices. Weights are recomputed at bar
// zero and at every bar where restructureAt is true; the level itself is
// never rebased across a reweight.
func (e *PriceWeightedETF) UpdateParameters(window *contracts.PriceWindow, restructureAt func(time.Time) bool) error {
	if window.Bars() < 2 {
		return &contracts.ShapeMismatchError{
			Msg: fmt.Sprintf("sector %s: historical window needs at least 2 bars, got %d", e.label, window.Bars()),
		}
	}
	if len(window.Tickers) != len(e.tickers) {
		return &contracts.ShapeMismatchError{
			Msg: fmt.Sprintf("sector %s: window has %d tickers, basket has %d", e.label, len(window.Tickers), len(e.tickers)),
		}
	}

	prices := fillGaps(window.Prices)
	bars := len(prices)

	series := make([]float64, bars)
	var active []float64

	for i := 0; i < bars; i++ {
		// The predicate runs on every bar, including bar zero, so a
		// wildcard trigger consumes its month even when the window opens
		// inside the trigger's week.
		fired := restructureAt(window.Dates[i])
		if i == 0 || fired {
			active = normalize(prices[i])
		}
		series[i] = dot(active, prices[i])

		if math.IsNaN(series[i]) || math.IsInf(series[i], 0) {
			return &contracts.DataIntegrityError{Sector: e.label, Bar: i, Date: window.Dates[i]}
		}
	}

	logReturns := make([]float64, bars-1)
	period := 0.0
	for i := 1; i < bars; i++ {
		logReturns[i-1] = math.Log(series[i] / series[i-1])
		period += logReturns[i-1]
	}

	e.dates = append([]time.Time(nil), window.Dates...)
	e.priceSeries = series
	e.logReturns = logReturns
	e.periodLogReturn = period
	e.variance = populationVariance(logReturns)
	e.setWeights(active)

	e.log.WithFields(map[string]interface{}{
		"sector":   e.label,
		"bars":     bars,
		"log_ret":  e.periodLogReturn,
		"variance": e.variance,
	}).Debug("Synthetic index parameters updated")

	return nil
}

// UpdateWeights recomputes the allocation weights from spot prices only.
// This is the restructure event during live stepping; it is independent
// of the historical reconstruction in UpdateParameters.
func (e *PriceWeightedETF) UpdateWeights(currentPrices []float64) error {
	if len(currentPrices) != len(e.tickers) {
		return &contracts.ShapeMismatchError{
			Msg: fmt.Sprintf("sector %s: got %d prices for %d tickers", e.label, len(currentPrices), len(e.tickers)),
		}
	}

	for i, p := range currentPrices {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return &contracts.DataIntegrityError{Sector: e.label, Bar: i, Date: time.Time{}}
		}
	}

	e.setWeights(normalize(currentPrices))
	return nil
}

// CurrentPrice values the index at the given spot prices under either
// the stored weights or a caller-supplied override. The override path is
// what lets the bookkeeper value the basket under its pre-trade weights.
func (e *PriceWeightedETF) CurrentPrice(currentPrices, overrideWeights []float64) float64 {
	w := e.allocWeights
	if overrideWeights != nil {
		w = overrideWeights
	}
	return dot(w, currentPrices)
}

// Weights returns a copy of the current allocation weights.
func (e *PriceWeightedETF) Weights() []float64 {
	out := make([]float64, len(e.allocWeights))
	copy(out, e.allocWeights)
	return out
}

// WeightOf returns the allocation weight of one ticker.
func (e *PriceWeightedETF) WeightOf(ticker string) float64 {
	return e.weightByTicker[ticker]
}

// LogReturns returns the per-bar log return series from the last
// parameter update.
func (e *PriceWeightedETF) LogReturns() []float64 {
	out := make([]float64, len(e.logReturns))
	copy(out, e.logReturns)
	return out
}

// PeriodLogReturn returns the summed log return over the window.
func (e *PriceWeightedETF) PeriodLogReturn() float64 { return e.periodLogReturn }

// Variance returns the population variance of the log returns.
func (e *PriceWeightedETF) Variance() float64 { return e.variance }

// PriceSeries returns the reconstructed index level series.
func (e *PriceWeightedETF) PriceSeries() []float64 {
	out := make([]float64, len(e.priceSeries))
	copy(out, e.priceSeries)
	return out
}

func (e *PriceWeightedETF) setWeights(w []float64) {
	e.allocWeights = w
	for i, t := range e.tickers {
		e.weightByTicker[t] = w[i]
	}
}

// fillGaps repairs missing bars column by column: backward-fill first so
// leading gaps take the first available value, then forward-fill so
// trailing gaps take the last. Cells that remain NaN (a fully empty
// column) surface later as a data-integrity failure.
func fillGaps(prices [][]float64) [][]float64 {
	bars := len(prices)
	if bars == 0 {
		return nil
	}
	cols := len(prices[0])

	out := make([][]float64, bars)
	for i := range prices {
		out[i] = append([]float64(nil), prices[i]...)
	}

	for j := 0; j < cols; j++ {
		// Backward fill
		for i := bars - 2; i >= 0; i-- {
			if math.IsNaN(out[i][j]) && !math.IsNaN(out[i+1][j]) {
				out[i][j] = out[i+1][j]
			}
		}
		// Forward fill
		for i := 1; i < bars; i++ {
			if math.IsNaN(out[i][j]) && !math.IsNaN(out[i-1][j]) {
				out[i][j] = out[i-1][j]
			}
		}
	}

	return out
}

func normalize(prices []float64) []float64 {
	sum := 0.0
	for _, p := range prices {
		sum += p
	}

	w := make([]float64, len(prices))
	for i, p := range prices {
		w[i] = p / sum
	}
	return w
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func populationVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	return variance / float64(len(xs))
}
