package results

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// Summary is the post-run performance report computed from the equity
// curve.
type Summary struct {
	Steps           int     `json:"steps"`
	FinalEquity     float64 `json:"final_equity"`
	TotalReturn     float64 `json:"total_return"`
	CAGR            float64 `json:"cagr"`
	AnnualizedVol   float64 `json:"annualized_vol"`
	Sharpe          float64 `json:"sharpe"`
	Sortino         float64 `json:"sortino"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	TotalTurnover   float64 `json:"total_turnover"`
	TotalCommission float64 `json:"total_commission"`
}

// Summarize computes the performance summary for a recorded run.
// Ratios that need at least two equity points are zero on shorter runs.
func Summarize(r *Recorder) Summary {
	_, equity := r.EquityCurve()

	s := Summary{
		Steps:           len(equity),
		TotalTurnover:   r.TotalTurnover(),
		TotalCommission: r.TotalCommission(),
	}
	if len(equity) == 0 {
		return s
	}

	s.FinalEquity = equity[len(equity)-1]
	if len(equity) < 2 || equity[0] <= 0 {
		return s
	}

	s.TotalReturn = equity[len(equity)-1]/equity[0] - 1

	years := float64(len(equity)-1) / tradingDaysPerYear
	if years > 0 && s.TotalReturn > -1 {
		s.CAGR = math.Pow(1+s.TotalReturn, 1/years) - 1
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			returns = append(returns, equity[i]/equity[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return s
	}

	mean, std := stat.MeanStdDev(returns, nil)
	s.AnnualizedVol = std * math.Sqrt(tradingDaysPerYear)
	if std > 0 {
		s.Sharpe = mean / std * math.Sqrt(tradingDaysPerYear)
	}

	var downside []float64
	for _, ret := range returns {
		if ret < 0 {
			downside = append(downside, ret)
		}
	}
	if len(downside) >= 2 {
		_, downStd := stat.MeanStdDev(downside, nil)
		if downStd > 0 {
			s.Sortino = mean / downStd * math.Sqrt(tradingDaysPerYear)
		}
	}

	s.MaxDrawdown = maxDrawdown(equity)
	return s
}

// maxDrawdown returns the largest peak-to-trough equity loss as a
// positive fraction.
func maxDrawdown(equity []float64) float64 {
	peak := equity[0]
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
