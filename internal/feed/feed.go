// Package feed defines the external data contracts the simulator consumes:
// a per-symbol daily price series and a per-day ranked score series. Both are
// already-materialized datasets; implementations must answer every query
// deterministically.
package feed

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/aleynatasdemir/QuantTrade/internal/types"
)

// PriceFeed serves daily OHLCV bars, queryable by (symbol, date) and by
// date-across-symbols.
type PriceFeed interface {
	// Symbols returns every symbol present in the feed, sorted.
	Symbols() ([]string, error)
	// TradingDays returns the sorted distinct trading days, optionally
	// restricted to [start, end].
	TradingDays(start optional.Option[time.Time], end optional.Option[time.Time]) ([]time.Time, error)
	// History returns the full bar series for a symbol, ordered by date.
	History(symbol string) ([]types.DailyBar, error)
	// BarOn returns the bar for (symbol, day), or None if the symbol did not
	// trade that day.
	BarOn(symbol string, day time.Time) (optional.Option[types.DailyBar], error)
}

// ScoreFeed serves externally-computed ranking scores.
type ScoreFeed interface {
	// CandidatesOn returns the candidates for a trading day ordered by
	// (score desc, symbol asc). The slice may be shorter than any requested
	// pool size, or empty when the day has no scores.
	CandidatesOn(day time.Time) ([]types.Candidate, error)
}

// Day normalizes a timestamp to its UTC calendar day. All feed lookups key
// on normalized days so bar timestamps and score timestamps join cleanly.
func Day(t time.Time) time.Time {
	u := t.UTC()

	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) int64 {
	return Day(t).Unix()
}
