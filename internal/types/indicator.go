package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// IndicatorRow holds the per-(symbol, date) rolling indicator values the exit
// rules consult. Rows inside a warm-up window carry None for the affected
// measures and false for the derived flags, so they never trigger an exit.
type IndicatorRow struct {
	Symbol string
	Date   time.Time
	// NATR is the normalized average true range: 100 * ATR(14) / close.
	NATR optional.Option[float64]
	// TrendDeviation is |close - SMA20| / SMA20.
	TrendDeviation optional.Option[float64]
	// IsStagnant is true when volatility is low (NATR below threshold) and
	// the trend is flat (deviation below threshold).
	IsStagnant bool
	// Stagnant3DCount is the rolling 3-day sum of IsStagnant (0..3).
	// Zero until the window is full.
	Stagnant3DCount int
	// Return5D is close / close 5 bars ago - 1.
	Return5D optional.Option[float64]
	// IsRSWeak is true when Return5D is below the weakness threshold.
	IsRSWeak bool
}
