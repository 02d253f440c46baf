package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Summary is the fixed set of scalar metrics computed once at the end of a
// simulation run.
type Summary struct {
	// ID is the unique identifier for this simulation run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// InitialCapital is the starting cash.
	InitialCapital float64 `yaml:"initial_capital"`
	// FinalEquity is the last equity-curve value.
	FinalEquity float64 `yaml:"final_equity"`
	// TotalReturn is final / initial - 1.
	TotalReturn float64 `yaml:"total_return"`
	// CAGR is the compound annual growth rate over the simulated period.
	CAGR float64 `yaml:"cagr"`
	// SharpeAnnual is mean(daily returns) / std(daily returns) scaled by the
	// square root of the annualization factor.
	SharpeAnnual float64 `yaml:"sharpe_annual"`
	// MaxDrawdown is the minimum of (equity - running max) / running max.
	// Always <= 0.
	MaxDrawdown float64 `yaml:"max_drawdown"`
	// TradingDays is the number of simulated equity points.
	TradingDays int `yaml:"trading_days"`
	// TotalTrades is the count of closed positions.
	TotalTrades int `yaml:"total_trades"`
	// WinRate is the fraction of trades with positive return.
	WinRate float64 `yaml:"win_rate"`
	// ExitReasons is the histogram of trade exit reasons.
	ExitReasons map[ExitReason]int `yaml:"exit_reasons"`
}

// WriteSummary marshals the run summary to YAML at the given path.
func WriteSummary(path string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary to file: %w", err)
	}

	return nil
}
