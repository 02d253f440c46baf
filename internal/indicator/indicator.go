// Package indicator computes the rolling per-symbol measures the exit rules
// consult: normalized ATR, SMA trend deviation, a derived stagnation flag
// with its 3-day count, the 5-day return, and a relative-weakness flag.
// Everything is a pure function of price history, computed in a single
// forward pass per symbol before the simulation starts.
package indicator

import (
	"math"
	"time"

	"github.com/moznion/go-optional"

	"github.com/aleynatasdemir/QuantTrade/internal/feed"
	"github.com/aleynatasdemir/QuantTrade/internal/types"
	"github.com/aleynatasdemir/QuantTrade/pkg/errors"
)

// Config holds the rolling-window parameters. Rule variants tune these
// thresholds instead of forking the computation.
type Config struct {
	// ATRPeriod is the true-range rolling mean window.
	ATRPeriod int `yaml:"atr_period" json:"atr_period" validate:"gt=0"`
	// SMAPeriod is the trend-deviation moving average window.
	SMAPeriod int `yaml:"sma_period" json:"sma_period" validate:"gt=0"`
	// StagnationNATRMax is the NATR ceiling for the stagnation flag.
	StagnationNATRMax float64 `yaml:"stagnation_natr_max" json:"stagnation_natr_max" validate:"gt=0"`
	// StagnationTrendDevMax is the trend-deviation ceiling for the flag.
	StagnationTrendDevMax float64 `yaml:"stagnation_trend_dev_max" json:"stagnation_trend_dev_max" validate:"gt=0"`
	// StagnationWindow is the rolling count window for the stagnation flag.
	StagnationWindow int `yaml:"stagnation_window" json:"stagnation_window" validate:"gt=0"`
	// ReturnPeriod is the lookback for the momentum return.
	ReturnPeriod int `yaml:"return_period" json:"return_period" validate:"gt=0"`
	// WeakReturnMax marks a symbol RS-weak when its lookback return falls
	// below this (negative) threshold.
	WeakReturnMax float64 `yaml:"weak_return_max" json:"weak_return_max" validate:"lt=0"`
}

// DefaultConfig returns the thresholds the strategy was tuned with.
func DefaultConfig() Config {
	return Config{
		ATRPeriod:             14,
		SMAPeriod:             20,
		StagnationNATRMax:     2.5,
		StagnationTrendDevMax: 0.015,
		StagnationWindow:      3,
		ReturnPeriod:          5,
		WeakReturnMax:         -0.02,
	}
}

// Engine computes and serves IndicatorRow values. Compute must run once
// before RowOn is consulted; rows are never mutated afterward.
type Engine struct {
	cfg  Config
	rows map[string]map[int64]types.IndicatorRow
}

// NewEngine creates an indicator engine with the given window config.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:  cfg,
		rows: make(map[string]map[int64]types.IndicatorRow),
	}
}

// Compute builds one IndicatorRow per (symbol, date) from the price feed.
func (e *Engine) Compute(prices feed.PriceFeed) error {
	symbols, err := prices.Symbols()
	if err != nil {
		return errors.Wrap(errors.ErrCodeIndicatorNotComputed, "failed to list symbols", err)
	}

	for _, symbol := range symbols {
		history, err := prices.History(symbol)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeIndicatorNotComputed, err, "failed to load history for %s", symbol)
		}

		e.rows[symbol] = e.computeSymbol(history)
	}

	return nil
}

// ComputeSeries computes the row series for a single ordered bar slice.
// Exposed for callers that already hold a history in memory.
func (e *Engine) ComputeSeries(history []types.DailyBar) []types.IndicatorRow {
	bySymbol := e.computeSymbol(history)

	out := make([]types.IndicatorRow, 0, len(history))
	for _, bar := range history {
		out = append(out, bySymbol[feed.Day(bar.Date).Unix()])
	}

	return out
}

// RowOn returns the indicator row for (symbol, day), or None when the symbol
// is unknown or the day is not in its history.
func (e *Engine) RowOn(symbol string, day time.Time) optional.Option[types.IndicatorRow] {
	bySymbol, ok := e.rows[symbol]
	if !ok {
		return optional.None[types.IndicatorRow]()
	}

	row, ok := bySymbol[feed.Day(day).Unix()]
	if !ok {
		return optional.None[types.IndicatorRow]()
	}

	return optional.Some(row)
}

func (e *Engine) computeSymbol(history []types.DailyBar) map[int64]types.IndicatorRow {
	out := make(map[int64]types.IndicatorRow, len(history))

	trueRanges := make([]float64, len(history))
	stagnant := make([]bool, len(history))

	for i, bar := range history {
		row := types.IndicatorRow{
			Symbol:          bar.Symbol,
			Date:            feed.Day(bar.Date),
			NATR:            optional.None[float64](),
			TrendDeviation:  optional.None[float64](),
			IsStagnant:      false,
			Stagnant3DCount: 0,
			Return5D:        optional.None[float64](),
			IsRSWeak:        false,
		}

		// True range needs the previous close, so it starts on the second bar.
		if i >= 1 {
			prevClose := history[i-1].Close
			trueRanges[i] = math.Max(
				bar.High-bar.Low,
				math.Max(
					math.Abs(bar.High-prevClose),
					math.Abs(bar.Low-prevClose),
				),
			)
		}

		// ATR is the rolling mean of the last ATRPeriod true ranges; the
		// first valid window ends at index ATRPeriod because index 0 has no
		// true range.
		if i >= e.cfg.ATRPeriod && bar.Close != 0 {
			sum := 0.0
			for j := i - e.cfg.ATRPeriod + 1; j <= i; j++ {
				sum += trueRanges[j]
			}

			atr := sum / float64(e.cfg.ATRPeriod)
			row.NATR = optional.Some(100 * atr / bar.Close)
		}

		if i >= e.cfg.SMAPeriod-1 {
			sum := 0.0
			for j := i - e.cfg.SMAPeriod + 1; j <= i; j++ {
				sum += history[j].Close
			}

			sma := sum / float64(e.cfg.SMAPeriod)
			if sma != 0 {
				row.TrendDeviation = optional.Some(math.Abs(bar.Close-sma) / sma)
			}
		}

		// Undefined measures never mark a bar stagnant.
		row.IsStagnant = row.NATR.IsSome() && row.TrendDeviation.IsSome() &&
			row.NATR.Unwrap() < e.cfg.StagnationNATRMax &&
			row.TrendDeviation.Unwrap() < e.cfg.StagnationTrendDevMax
		stagnant[i] = row.IsStagnant

		if i >= e.cfg.StagnationWindow-1 {
			count := 0
			for j := i - e.cfg.StagnationWindow + 1; j <= i; j++ {
				if stagnant[j] {
					count++
				}
			}

			row.Stagnant3DCount = count
		}

		if i >= e.cfg.ReturnPeriod {
			base := history[i-e.cfg.ReturnPeriod].Close
			if base != 0 {
				ret := bar.Close/base - 1
				row.Return5D = optional.Some(ret)
				row.IsRSWeak = ret < e.cfg.WeakReturnMax
			}
		}

		out[row.Date.Unix()] = row
	}

	return out
}
