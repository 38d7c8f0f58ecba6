package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
)

func testBookkeeper() *Bookkeeper {
	return NewBookkeeper(strategyconfig.CommissionsConfig{
		ETFRate:      0.01,
		RelativeRate: 0.01,
		TradeRate:    0.005,
	})
}

func TestSectorTurnover(t *testing.T) {
	b := testBookkeeper()

	// Two assets moving 0.5->0.6 and 0.5->0.4 at price 100: 10 dollars
	// of turnover each, 20 total.
	up := b.SectorTurnover(0.5, 0.6, 100)
	down := b.SectorTurnover(0.5, 0.4, 100)
	assert.InDelta(t, 10.0, up, 1e-12)
	assert.InDelta(t, 10.0, down, 1e-12)
	assert.InDelta(t, 20.0, up+down, 1e-12)
}

func TestComponentTurnover(t *testing.T) {
	b := testBookkeeper()

	turnover, err := b.ComponentTurnover([]float64{0.5, 0.5}, []float64{0.6, 0.4}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, turnover, 1e-12)

	// Unchanged weights cost nothing.
	turnover, err = b.ComponentTurnover([]float64{0.3, 0.7}, []float64{0.3, 0.7}, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, turnover)
}

func TestComponentTurnover_ShapeMismatch(t *testing.T) {
	b := testBookkeeper()

	_, err := b.ComponentTurnover([]float64{0.5, 0.5}, []float64{1.0}, 100)
	var shape *contracts.ShapeMismatchError
	require.ErrorAs(t, err, &shape)
}

func TestApplyRebalance(t *testing.T) {
	b := testBookkeeper()
	rec := contracts.NewStepRecord(time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC), []string{"tech", "energy"})

	b.ApplyRebalance(rec, map[string]float64{"tech": 10, "energy": 10})

	assert.Equal(t, 10.0, rec.RebalanceTurnover["tech"])
	assert.Equal(t, 20.0, rec.TotalRebalanceTurnover)
	assert.InDelta(t, 0.2, rec.RebalanceCommission, 1e-12)

	// Restructure fields stay at their explicit zeros.
	assert.Equal(t, 0.0, rec.TotalRestructureTurnover)
	assert.Equal(t, 0.0, rec.RestructureCommission)
}

func TestApplyRestructure(t *testing.T) {
	b := testBookkeeper()
	rec := contracts.NewStepRecord(time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC), []string{"tech", "energy"})

	b.ApplyRestructure(rec, map[string]float64{"tech": 5, "energy": 0})

	assert.Equal(t, 5.0, rec.RestructureTurnover["tech"])
	assert.Equal(t, 0.0, rec.RestructureTurnover["energy"])
	assert.Equal(t, 5.0, rec.TotalRestructureTurnover)
	assert.InDelta(t, 0.05, rec.RestructureCommission, 1e-12)
}
