// Package report turns the ledger's raw streams into run-level performance
// metrics and renders them as a YAML summary and a Markdown report.
package report

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aleynatasdemir/QuantTrade/internal/backtest"
	"github.com/aleynatasdemir/QuantTrade/internal/types"
	"github.com/aleynatasdemir/QuantTrade/pkg/errors"
)

// stdEpsilon guards the Sharpe denominator against a zero-variance curve.
const stdEpsilon = 1e-12

// Compute derives the run summary from the closed trades and the daily
// equity curve. The equity curve must have at least one point.
func Compute(cfg backtest.Config, trades []types.Trade, equity []types.EquityPoint) (types.Summary, error) {
	if len(equity) == 0 {
		return types.Summary{}, errors.New(errors.ErrCodeEmptyEquityCurve, "cannot summarize a run with an empty equity curve")
	}

	initial := cfg.InitialCapital
	final := equity[len(equity)-1].Equity
	days := len(equity)

	summary := types.Summary{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		InitialCapital: initial,
		FinalEquity:    final,
		TotalReturn:    final/initial - 1,
		CAGR:           cagr(initial, final, days, cfg.PeriodsPerYear),
		SharpeAnnual:   sharpe(equity, cfg.PeriodsPerYear),
		MaxDrawdown:    maxDrawdown(equity),
		TradingDays:    days,
		TotalTrades:    len(trades),
		WinRate:        winRate(trades),
		ExitReasons:    reasonCounts(trades),
	}

	return summary, nil
}

// cagr annualizes the total growth over the simulated day count.
func cagr(initial, final float64, days, periodsPerYear int) float64 {
	if initial <= 0 || final <= 0 || days == 0 {
		return 0
	}

	return math.Pow(final/initial, float64(periodsPerYear)/float64(days)) - 1
}

// sharpe is the annualized mean-over-stddev of the daily equity returns,
// using the sample standard deviation.
func sharpe(equity []types.EquityPoint, periodsPerYear int) float64 {
	if len(equity) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(equity)-1)

	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			return 0
		}

		returns = append(returns, equity[i].Equity/prev-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns) - 1)

	return mean / (math.Sqrt(variance) + stdEpsilon) * math.Sqrt(float64(periodsPerYear))
}

// maxDrawdown is the worst peak-to-trough decline of the equity curve,
// reported as a non-positive fraction.
func maxDrawdown(equity []types.EquityPoint) float64 {
	peak := equity[0].Equity
	worst := 0.0

	for _, point := range equity {
		if point.Equity > peak {
			peak = point.Equity
		}

		if peak > 0 {
			dd := point.Equity/peak - 1
			if dd < worst {
				worst = dd
			}
		}
	}

	return worst
}

func winRate(trades []types.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}

	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}

	return float64(wins) / float64(len(trades))
}

func reasonCounts(trades []types.Trade) map[types.ExitReason]int {
	counts := make(map[types.ExitReason]int)
	for _, t := range trades {
		counts[t.ExitReason]++
	}

	return counts
}
