package strategyconfig

import (
	"time"

	"github.com/quantfolio/reindexer/internal/triggers"
)

// Config is the simulation parameter file. One YAML file fully
// determines a run; its hash goes into the results repository so any
// step failure can be reproduced against the same inputs.
type Config struct {
	Meta        MetaConfig        `yaml:"meta" json:"meta"`
	Backtest    BacktestConfig    `yaml:"backtest" json:"backtest"`
	Index       IndexConfig       `yaml:"index" json:"index"`
	Triggers    TriggersConfig    `yaml:"triggers" json:"triggers"`
	Optimizer   OptimizerConfig   `yaml:"optimizer" json:"optimizer"`
	Commissions CommissionsConfig `yaml:"commissions" json:"commissions"`
}

// MetaConfig identifies the strategy.
type MetaConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// BacktestConfig holds the simulation window and capital base.
type BacktestConfig struct {
	Start       string  `yaml:"start" json:"start"` // YYYY-MM-DD
	End         string  `yaml:"end" json:"end"`     // YYYY-MM-DD
	CapitalBase float64 `yaml:"capital_base" json:"capital_base"`
}

// IndexConfig holds synthetic index parameters.
type IndexConfig struct {
	// Historical lookback window, in bars (252 = one trading year).
	LookbackBars int `yaml:"lookback_bars" json:"lookback_bars"`
}

// TriggersConfig holds the two calendar trigger specs.
type TriggersConfig struct {
	Restructure triggers.Spec `yaml:"restructure" json:"restructure"`
	Rebalance   triggers.Spec `yaml:"rebalance" json:"rebalance"`
}

// OptimizerConfig holds minimum-variance solver parameters.
type OptimizerConfig struct {
	Tolerance     float64 `yaml:"tolerance" json:"tolerance"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"`

	// Retries with a fresh random initial guess after a non-convergence
	// before the step is failed.
	Retries int `yaml:"retries" json:"retries"`
}

// CommissionsConfig holds commission rates.
type CommissionsConfig struct {
	// Rate applied to restructure turnover (component trades).
	ETFRate float64 `yaml:"etf_rate" json:"etf_rate"`

	// Rate applied to rebalance turnover (index-level trades).
	RelativeRate float64 `yaml:"relative_rate" json:"relative_rate"`

	// Flat commission per dollar traded, declared to the execution layer.
	TradeRate float64 `yaml:"trade_rate" json:"trade_rate"`
}

// StartDate returns the parsed backtest start. Validate guarantees it
// parses.
func (c *Config) StartDate() time.Time {
	d, _ := time.Parse("2006-01-02", c.Backtest.Start)
	return d
}

// EndDate returns the parsed backtest end.
func (c *Config) EndDate() time.Time {
	d, _ := time.Parse("2006-01-02", c.Backtest.End)
	return d
}

// Default returns the configuration the original SP500 sector study
// used: one-year lookback, restructure on the third Friday, rebalance on
// the first trading day of the month.
func Default() *Config {
	return &Config{
		Meta: MetaConfig{
			Name: "sector-minvar",
		},
		Backtest: BacktestConfig{
			Start:       "2015-01-01",
			End:         "2018-03-01",
			CapitalBase: 1e10,
		},
		Index: IndexConfig{
			LookbackBars: 252,
		},
		Triggers: TriggersConfig{
			Restructure: triggers.Spec{WeekOfMonth: 3, DayOfWeek: "Friday"},
			Rebalance:   triggers.Spec{WeekOfMonth: 1, DayOfWeek: triggers.Wildcard},
		},
		Optimizer: OptimizerConfig{
			Tolerance:     1e-6,
			MaxIterations: 10000,
			Retries:       2,
		},
		Commissions: CommissionsConfig{
			ETFRate:      0.01,
			RelativeRate: 0.01,
			TradeRate:    0.005,
		},
	}
}
