package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a strategy YAML file. Unknown fields fail immediately so a
// typo cannot silently fall back to a default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes and validates strategy YAML content.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode strategy config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the strategy configuration.
func Validate(cfg *Config) error {
	if cfg.Meta.Name == "" {
		return fmt.Errorf("meta.name is required")
	}

	start, err := time.Parse("2006-01-02", cfg.Backtest.Start)
	if err != nil {
		return fmt.Errorf("backtest.start: %w", err)
	}
	end, err := time.Parse("2006-01-02", cfg.Backtest.End)
	if err != nil {
		return fmt.Errorf("backtest.end: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("backtest.end %s must be after backtest.start %s", cfg.Backtest.End, cfg.Backtest.Start)
	}

	if cfg.Backtest.CapitalBase <= 0 {
		return fmt.Errorf("backtest.capital_base must be positive")
	}

	if cfg.Index.LookbackBars < 2 {
		return fmt.Errorf("index.lookback_bars must be at least 2, got %d", cfg.Index.LookbackBars)
	}

	if err := cfg.Triggers.Restructure.Validate(); err != nil {
		return fmt.Errorf("triggers.restructure: %w", err)
	}
	if err := cfg.Triggers.Rebalance.Validate(); err != nil {
		return fmt.Errorf("triggers.rebalance: %w", err)
	}

	if cfg.Optimizer.Tolerance <= 0 {
		return fmt.Errorf("optimizer.tolerance must be positive")
	}
	if cfg.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("optimizer.max_iterations must be at least 1")
	}
	if cfg.Optimizer.Retries < 0 {
		return fmt.Errorf("optimizer.retries must not be negative")
	}

	if cfg.Commissions.ETFRate < 0 || cfg.Commissions.RelativeRate < 0 || cfg.Commissions.TradeRate < 0 {
		return fmt.Errorf("commission rates must not be negative")
	}

	return nil
}

// Hash generates a SHA-256 hash of the canonical JSON form of the
// config. Structs (not maps) keep the field order deterministic.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
