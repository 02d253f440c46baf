package feed

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/aleynatasdemir/QuantTrade/internal/types"
)

// MemoryPriceFeed is an indexed in-memory PriceFeed. It preloads all bars
// and answers lookups from maps, which keeps the daily loop free of I/O.
type MemoryPriceFeed struct {
	// bars indexed by symbol, ordered by date
	bySymbol map[string][]types.DailyBar
	// (symbol, day) index into bySymbol
	dayIndex map[string]map[int64]int
	days     []time.Time
	symbols  []string
}

// NewMemoryPriceFeed builds an indexed feed from an unordered bar slice.
func NewMemoryPriceFeed(bars []types.DailyBar) *MemoryPriceFeed {
	f := &MemoryPriceFeed{
		bySymbol: make(map[string][]types.DailyBar),
		dayIndex: make(map[string]map[int64]int),
		days:     nil,
		symbols:  nil,
	}

	sorted := make([]types.DailyBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}

		return sorted[i].Symbol < sorted[j].Symbol
	})

	daySeen := make(map[int64]bool)

	for _, bar := range sorted {
		bar.Date = Day(bar.Date)
		key := dayKey(bar.Date)

		if _, ok := f.bySymbol[bar.Symbol]; !ok {
			f.bySymbol[bar.Symbol] = nil
			f.dayIndex[bar.Symbol] = make(map[int64]int)
			f.symbols = append(f.symbols, bar.Symbol)
		}

		f.dayIndex[bar.Symbol][key] = len(f.bySymbol[bar.Symbol])
		f.bySymbol[bar.Symbol] = append(f.bySymbol[bar.Symbol], bar)

		if !daySeen[key] {
			daySeen[key] = true
			f.days = append(f.days, bar.Date)
		}
	}

	sort.Strings(f.symbols)

	return f
}

// Symbols implements PriceFeed.
func (f *MemoryPriceFeed) Symbols() ([]string, error) {
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)

	return out, nil
}

// TradingDays implements PriceFeed.
func (f *MemoryPriceFeed) TradingDays(start optional.Option[time.Time], end optional.Option[time.Time]) ([]time.Time, error) {
	var out []time.Time

	for _, day := range f.days {
		if start.IsSome() && day.Before(Day(start.Unwrap())) {
			continue
		}

		if end.IsSome() && day.After(Day(end.Unwrap())) {
			continue
		}

		out = append(out, day)
	}

	return out, nil
}

// History implements PriceFeed.
func (f *MemoryPriceFeed) History(symbol string) ([]types.DailyBar, error) {
	series := f.bySymbol[symbol]
	out := make([]types.DailyBar, len(series))
	copy(out, series)

	return out, nil
}

// BarOn implements PriceFeed.
func (f *MemoryPriceFeed) BarOn(symbol string, day time.Time) (optional.Option[types.DailyBar], error) {
	index, ok := f.dayIndex[symbol]
	if !ok {
		return optional.None[types.DailyBar](), nil
	}

	i, ok := index[dayKey(day)]
	if !ok {
		return optional.None[types.DailyBar](), nil
	}

	return optional.Some(f.bySymbol[symbol][i]), nil
}

// MemoryScoreFeed is an in-memory ScoreFeed with candidates pre-ranked per
// day by (score desc, symbol asc).
type MemoryScoreFeed struct {
	byDay map[int64][]types.Candidate
}

// NewMemoryScoreFeed builds an indexed score feed from an unordered slice.
func NewMemoryScoreFeed(candidates []types.Candidate) *MemoryScoreFeed {
	f := &MemoryScoreFeed{
		byDay: make(map[int64][]types.Candidate),
	}

	for _, c := range candidates {
		c.Date = Day(c.Date)
		key := dayKey(c.Date)
		f.byDay[key] = append(f.byDay[key], c)
	}

	for key := range f.byDay {
		day := f.byDay[key]
		sort.Slice(day, func(i, j int) bool {
			if day[i].Score != day[j].Score {
				return day[i].Score > day[j].Score
			}

			return day[i].Symbol < day[j].Symbol
		})
	}

	return f
}

// CandidatesOn implements ScoreFeed.
func (f *MemoryScoreFeed) CandidatesOn(day time.Time) ([]types.Candidate, error) {
	ranked := f.byDay[dayKey(day)]
	out := make([]types.Candidate, len(ranked))
	copy(out, ranked)

	return out, nil
}

var (
	_ PriceFeed = (*MemoryPriceFeed)(nil)
	_ ScoreFeed = (*MemoryScoreFeed)(nil)
)
