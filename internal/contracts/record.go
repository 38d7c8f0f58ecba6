package contracts

import "time"

// StepRecord is the per-step output row: index valuations, portfolio
// weights, and the turnover/commission bookkeeping for whatever events
// fired on the step. Maps are keyed by sector label.
type StepRecord struct {
	Date time.Time `json:"date"`

	// Always populated
	IndexPrice      map[string]float64 `json:"index_price"`
	PortfolioWeight map[string]float64 `json:"portfolio_weight"`
	Equity          float64            `json:"equity"`

	// Event bookkeeping: zero on steps where the event did not fire.
	RestructureTurnover      map[string]float64 `json:"restructure_turnover"`
	TotalRestructureTurnover float64            `json:"total_restructure_turnover"`
	RestructureCommission    float64            `json:"restructure_commission"`

	RebalanceTurnover      map[string]float64 `json:"rebalance_turnover"`
	TotalRebalanceTurnover float64            `json:"total_rebalance_turnover"`
	RebalanceCommission    float64            `json:"rebalance_commission"`
}

// NewStepRecord allocates a record with every sector-keyed field zeroed
// for the given sectors.
func NewStepRecord(date time.Time, sectors []string) *StepRecord {
	rec := &StepRecord{
		Date:                date,
		IndexPrice:          make(map[string]float64, len(sectors)),
		PortfolioWeight:     make(map[string]float64, len(sectors)),
		RestructureTurnover: make(map[string]float64, len(sectors)),
		RebalanceTurnover:   make(map[string]float64, len(sectors)),
	}
	for _, s := range sectors {
		rec.IndexPrice[s] = 0
		rec.PortfolioWeight[s] = 0
		rec.RestructureTurnover[s] = 0
		rec.RebalanceTurnover[s] = 0
	}
	return rec
}

// Clone returns a deep copy of the record.
func (r *StepRecord) Clone() *StepRecord {
	cp := *r
	cp.IndexPrice = copyMap(r.IndexPrice)
	cp.PortfolioWeight = copyMap(r.PortfolioWeight)
	cp.RestructureTurnover = copyMap(r.RestructureTurnover)
	cp.RebalanceTurnover = copyMap(r.RebalanceTurnover)
	return &cp
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
