package backtest

import (
	"fmt"
	"math"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/internal/strategyconfig"
)

// Bookkeeper computes dollar turnover and commission for restructure
// and rebalance events. It is stateless: old and new snapshots come in
// as explicit arguments, and event fields on steps where nothing fired
// stay at the zeros NewStepRecord put there.
type Bookkeeper struct {
	commissions strategyconfig.CommissionsConfig
}

// NewBookkeeper creates a bookkeeper with the configured commission
// rates.
func NewBookkeeper(commissions strategyconfig.CommissionsConfig) *Bookkeeper {
	return &Bookkeeper{commissions: commissions}
}

// ComponentTurnover is the restructure turnover for one sector: the sum
// of absolute component-weight changes, in dollars at the pre-trade
// index price.
func (b *Bookkeeper) ComponentTurnover(oldWeights, newWeights []float64, indexPrice float64) (float64, error) {
	if len(oldWeights) != len(newWeights) {
		return 0, &contracts.ShapeMismatchError{
			Msg: fmt.Sprintf("component turnover: %d old weights vs %d new", len(oldWeights), len(newWeights)),
		}
	}

	turnover := 0.0
	for i := range oldWeights {
		turnover += math.Abs(newWeights[i]-oldWeights[i]) * indexPrice
	}
	return turnover, nil
}

// SectorTurnover is the rebalance turnover for one sector: the absolute
// portfolio-weight change in dollars at the sector index price.
func (b *Bookkeeper) SectorTurnover(oldWeight, newWeight, indexPrice float64) float64 {
	return math.Abs(newWeight-oldWeight) * indexPrice
}

// ApplyRestructure writes per-sector restructure turnover into the step
// record with its total and commission.
func (b *Bookkeeper) ApplyRestructure(rec *contracts.StepRecord, perSector map[string]float64) {
	total := 0.0
	for sector, turnover := range perSector {
		rec.RestructureTurnover[sector] = turnover
		total += turnover
	}
	rec.TotalRestructureTurnover = total
	rec.RestructureCommission = total * b.commissions.ETFRate
}

// ApplyRebalance writes per-sector rebalance turnover into the step
// record with its total and commission.
func (b *Bookkeeper) ApplyRebalance(rec *contracts.StepRecord, perSector map[string]float64) {
	total := 0.0
	for sector, turnover := range perSector {
		rec.RebalanceTurnover[sector] = turnover
		total += turnover
	}
	rec.TotalRebalanceTurnover = total
	rec.RebalanceCommission = total * b.commissions.RelativeRate
}
