package results

import (
	"fmt"
	"time"

	"github.com/quantfolio/reindexer/internal/contracts"
)

// Recorder accumulates per-step records for one run. Every simulated
// step appends exactly one record; event fields on non-event steps are
// already zeroed by the engine, so the stored series never carries a
// stale turnover value forward.
type Recorder struct {
	sectors []string
	records []*contracts.StepRecord

	totalCommission float64
	totalTurnover   float64
}

// NewRecorder creates a recorder for the given sector labels.
func NewRecorder(sectors []string) *Recorder {
	out := make([]string, len(sectors))
	copy(out, sectors)
	return &Recorder{sectors: out}
}

// Append stores one step record. Dates must be strictly increasing.
func (r *Recorder) Append(rec *contracts.StepRecord) error {
	if n := len(r.records); n > 0 && !rec.Date.After(r.records[n-1].Date) {
		return fmt.Errorf("step record for %s is not after previous step %s",
			rec.Date.Format("2006-01-02"), r.records[n-1].Date.Format("2006-01-02"))
	}

	r.records = append(r.records, rec.Clone())
	r.totalCommission += rec.RestructureCommission + rec.RebalanceCommission
	r.totalTurnover += rec.TotalRestructureTurnover + rec.TotalRebalanceTurnover
	return nil
}

// Sectors returns the sector labels the recorder was created with.
func (r *Recorder) Sectors() []string {
	out := make([]string, len(r.sectors))
	copy(out, r.sectors)
	return out
}

// Records returns the recorded steps in order.
func (r *Recorder) Records() []*contracts.StepRecord {
	return r.records
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int {
	return len(r.records)
}

// EquityCurve returns the equity series with its dates.
func (r *Recorder) EquityCurve() ([]time.Time, []float64) {
	dates := make([]time.Time, len(r.records))
	equity := make([]float64, len(r.records))
	for i, rec := range r.records {
		dates[i] = rec.Date
		equity[i] = rec.Equity
	}
	return dates, equity
}

// TotalCommission returns the run's cumulative commission.
func (r *Recorder) TotalCommission() float64 {
	return r.totalCommission
}

// TotalTurnover returns the run's cumulative turnover.
func (r *Recorder) TotalTurnover() float64 {
	return r.totalTurnover
}
