package contracts

import (
	"context"
	"math"
	"time"
)

// MarketData is the surface the engine consumes from the simulation (or
// live) environment: historical bars, spot prices, symbol resolution and
// target-weight execution. The engine never computes share counts; it
// hands fractional portfolio targets to this interface.
type MarketData interface {
	// History returns exactly barCount daily bars per ticker, ending at
	// the current simulation date. Missing values are NaN; the caller is
	// responsible for filling.
	History(ctx context.Context, tickers []string, barCount int) (*PriceWindow, error)

	// Current returns the spot price per ticker at the current
	// simulation date, in ticker order.
	Current(ctx context.Context, tickers []string) ([]float64, error)

	// CanTrade reports whether the ticker is tradeable at all.
	CanTrade(ticker string) bool

	// Resolve maps a ticker to an execution handle. A resolution failure
	// removes the ticker from the universe at startup.
	Resolve(ticker string) (string, error)

	// SetTargetWeight instructs the execution layer to reach the given
	// fraction of portfolio value in the ticker. Fractions are always
	// non-negative: the engine is long-only.
	SetTargetWeight(ctx context.Context, ticker string, fraction float64) error
}

// PriceWindow is a dense bar-by-ticker price table. Rows are bars in
// chronological order, columns follow Tickers.
type PriceWindow struct {
	Dates   []time.Time
	Tickers []string
	Prices  [][]float64 // len(Dates) rows, len(Tickers) columns
}

// NewPriceWindow allocates a window with every cell set to NaN.
func NewPriceWindow(dates []time.Time, tickers []string) *PriceWindow {
	prices := make([][]float64, len(dates))
	for i := range prices {
		row := make([]float64, len(tickers))
		for j := range row {
			row[j] = math.NaN()
		}
		prices[i] = row
	}
	return &PriceWindow{Dates: dates, Tickers: tickers, Prices: prices}
}

// Bars returns the number of bars in the window.
func (w *PriceWindow) Bars() int {
	return len(w.Dates)
}

// Column returns a copy of the price series for one ticker column.
func (w *PriceWindow) Column(j int) []float64 {
	col := make([]float64, len(w.Prices))
	for i := range w.Prices {
		col[i] = w.Prices[i][j]
	}
	return col
}
