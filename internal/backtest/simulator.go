package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/internal/marketdata"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// Simulator is the execution environment for a historical run. It
// implements the market-data surface the engine consumes, backed by the
// bar store, and fills target-weight orders instantly at the current
// close. Long-only: negative target fractions are rejected.
type Simulator struct {
	store  *marketdata.Store
	cursor time.Time

	cash      float64
	shares    map[string]float64
	tradeRate float64

	log *logger.Logger
}

var _ contracts.MarketData = (*Simulator)(nil)

// NewSimulator creates a simulator with the given starting capital and
// per-dollar trade commission rate.
func NewSimulator(store *marketdata.Store, capitalBase, tradeRate float64, log *logger.Logger) *Simulator {
	return &Simulator{
		store:     store,
		cash:      capitalBase,
		shares:    make(map[string]float64),
		tradeRate: tradeRate,
		log:       log,
	}
}

// SetCursor moves the simulation clock to the given trading day.
func (s *Simulator) SetCursor(date time.Time) {
	s.cursor = date
}

// Cursor returns the current simulation date.
func (s *Simulator) Cursor() time.Time {
	return s.cursor
}

// History returns exactly barCount bars per ticker ending at the
// cursor. Missing cells are NaN; the index engine fills them.
func (s *Simulator) History(ctx context.Context, tickers []string, barCount int) (*contracts.PriceWindow, error) {
	return s.store.WindowEnding(s.cursor, tickers, barCount)
}

// Current returns the spot price per ticker at the cursor, in ticker
// order. A ticker with no bar at the cursor prices off its last trade.
func (s *Simulator) Current(ctx context.Context, tickers []string) ([]float64, error) {
	prices := make([]float64, len(tickers))
	for i, ticker := range tickers {
		px, ok := s.store.LastPriceOn(s.cursor, ticker)
		if !ok {
			return nil, fmt.Errorf("no price for %s at or before %s", ticker, s.cursor.Format("2006-01-02"))
		}
		prices[i] = px
	}
	return prices, nil
}

// CanTrade reports whether the ticker has a bar series loaded.
func (s *Simulator) CanTrade(ticker string) bool {
	return s.store.HasTicker(ticker)
}

// Resolve maps a ticker to its execution handle. A ticker without bar
// data cannot be resolved.
func (s *Simulator) Resolve(ticker string) (string, error) {
	if !s.store.HasTicker(ticker) {
		return "", fmt.Errorf("no bar data for %s", ticker)
	}
	return ticker, nil
}

// SetTargetWeight trades the ticker to the given fraction of current
// equity at the cursor close, charging the trade commission on the
// dollar amount moved.
func (s *Simulator) SetTargetWeight(ctx context.Context, ticker string, fraction float64) error {
	if fraction < 0 || math.IsNaN(fraction) {
		return fmt.Errorf("target weight %g for %s: short positions are not allowed", fraction, ticker)
	}

	px, ok := s.store.LastPriceOn(s.cursor, ticker)
	if !ok {
		return fmt.Errorf("no price for %s at or before %s", ticker, s.cursor.Format("2006-01-02"))
	}

	equity := s.Equity()
	target := fraction * equity
	current := s.shares[ticker] * px
	delta := target - current

	commission := math.Abs(delta) * s.tradeRate
	s.cash -= delta + commission
	s.shares[ticker] = target / px

	s.log.WithFields(map[string]interface{}{
		"ticker":   ticker,
		"fraction": fraction,
		"traded":   delta,
	}).Debug("Target weight filled")

	return nil
}

// Equity returns cash plus positions marked at the cursor close.
func (s *Simulator) Equity() float64 {
	total := s.cash
	for ticker, qty := range s.shares {
		if qty == 0 {
			continue
		}
		if px, ok := s.store.LastPriceOn(s.cursor, ticker); ok {
			total += qty * px
		}
	}
	return total
}

// Cash returns the uninvested balance.
func (s *Simulator) Cash() float64 {
	return s.cash
}

// Position returns the share count held in a ticker.
func (s *Simulator) Position(ticker string) float64 {
	return s.shares[ticker]
}
