package strategyconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
meta:
  name: sector-minvar
  description: SP500 sector rotation
backtest:
  start: 2015-01-01
  end: 2018-03-01
  capital_base: 1.0e10
index:
  lookback_bars: 252
triggers:
  restructure:
    week: 3
    day: Friday
  rebalance:
    week: 1
    day: "*"
optimizer:
  tolerance: 1.0e-6
  max_iterations: 10000
  retries: 2
commissions:
  etf_rate: 0.01
  relative_rate: 0.01
  trade_rate: 0.005
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, "sector-minvar", cfg.Meta.Name)
	assert.Equal(t, 252, cfg.Index.LookbackBars)
	assert.Equal(t, 3, cfg.Triggers.Restructure.WeekOfMonth)
	assert.Equal(t, "Friday", cfg.Triggers.Restructure.DayOfWeek)
	assert.Equal(t, "*", cfg.Triggers.Rebalance.DayOfWeek)
	assert.Equal(t, 2015, cfg.StartDate().Year())
	assert.Equal(t, 2018, cfg.EndDate().Year())
}

func TestParse_UnknownFieldFails(t *testing.T) {
	yaml := strings.Replace(validYAML, "lookback_bars:", "lookback_days:", 1)
	_, err := Parse([]byte(yaml))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Meta.Name = "" }},
		{"bad start date", func(c *Config) { c.Backtest.Start = "01/01/2015" }},
		{"end before start", func(c *Config) { c.Backtest.End = "2014-01-01" }},
		{"zero capital", func(c *Config) { c.Backtest.CapitalBase = 0 }},
		{"one-bar lookback", func(c *Config) { c.Index.LookbackBars = 1 }},
		{"week out of range", func(c *Config) { c.Triggers.Restructure.WeekOfMonth = 9 }},
		{"bad weekday", func(c *Config) { c.Triggers.Rebalance.DayOfWeek = "Fredag" }},
		{"zero tolerance", func(c *Config) { c.Optimizer.Tolerance = 0 }},
		{"zero iterations", func(c *Config) { c.Optimizer.MaxIterations = 0 }},
		{"negative commission", func(c *Config) { c.Commissions.ETFRate = -0.01 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	b, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := Default()
	changed.Index.LookbackBars = 126
	c, err := Hash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
