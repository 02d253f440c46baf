package backtest

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/aleynatasdemir/QuantTrade/internal/feed"
	"github.com/aleynatasdemir/QuantTrade/internal/indicator"
	"github.com/aleynatasdemir/QuantTrade/internal/logger"
	"github.com/aleynatasdemir/QuantTrade/internal/types"
)

// memoryRecorder collects the simulator's output streams in memory.
type memoryRecorder struct {
	trades []types.Trade
	equity []types.EquityPoint
}

func (r *memoryRecorder) RecordTrade(trade types.Trade) error {
	r.trades = append(r.trades, trade)

	return nil
}

func (r *memoryRecorder) RecordEquity(point types.EquityPoint) error {
	r.equity = append(r.equity, point)

	return nil
}

type SimulatorTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func (suite *SimulatorTestSuite) SetupSuite() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)
	suite.logger = log
}

func TestSimulatorSuite(t *testing.T) {
	suite.Run(t, new(SimulatorTestSuite))
}

// day returns the n-th simulated calendar day.
func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// flatBars builds n identical bars for a symbol starting at day(0).
func flatBars(symbol string, n int, price float64) []types.DailyBar {
	bars := make([]types.DailyBar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, types.DailyBar{
			Symbol: symbol,
			Date:   day(i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		})
	}

	return bars
}

// frictionlessConfig zeroes commission and slippage so fills land exactly on
// the reference prices.
func frictionlessConfig() Config {
	cfg := DefaultConfig()
	cfg.Commission = 0
	cfg.SlippageBuy = 0
	cfg.SlippageSell = 0

	return cfg
}

func (suite *SimulatorTestSuite) newSimulator(cfg Config, bars []types.DailyBar, candidates []types.Candidate) (*Simulator, *memoryRecorder) {
	prices := feed.NewMemoryPriceFeed(bars)
	scores := feed.NewMemoryScoreFeed(candidates)

	indicators := indicator.NewEngine(cfg.Indicator)
	suite.Require().NoError(indicators.Compute(prices))

	recorder := &memoryRecorder{}

	sim, err := NewSimulator(cfg, prices, scores, indicators, recorder, suite.logger)
	suite.Require().NoError(err)

	return sim, recorder
}

func (suite *SimulatorTestSuite) TestTimeExitOnFlatPrice() {
	cfg := frictionlessConfig()

	bars := flatBars("AAA", 30, 100)
	candidates := []types.Candidate{{Date: day(0), Symbol: "AAA", Score: 1.0}}

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	suite.Require().Len(recorder.trades, 1)

	trade := recorder.trades[0]
	suite.Equal("AAA", trade.Symbol)
	suite.Equal(types.ExitReasonTime, trade.ExitReason)
	suite.Equal(day(1), trade.EntryDate)
	// Entry day counts as held day one, so the horizon is reached on day 20
	// and the exit fills at day 21's open.
	suite.Equal(day(21), trade.ExitDate)
	suite.Equal(cfg.Horizon, trade.DaysHeld)
	suite.InDelta(100.0, trade.ExitPrice, 1e-9)
	suite.InDelta(0.0, trade.ReturnPct, 1e-9)
}

func (suite *SimulatorTestSuite) TestStopLossGapDown() {
	cfg := frictionlessConfig()

	bars := flatBars("AAA", 2, 100)
	// Gap down through the stop: the open is already below the stop level,
	// so the fill is the open.
	bars = append(bars, types.DailyBar{
		Symbol: "AAA", Date: day(2), Open: 90, High: 91, Low: 88, Close: 89, Volume: 1000,
	})
	candidates := []types.Candidate{{Date: day(0), Symbol: "AAA", Score: 1.0}}

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	suite.Require().Len(recorder.trades, 1)

	trade := recorder.trades[0]
	suite.Equal(types.ExitReasonStopLoss, trade.ExitReason)
	suite.Equal(day(2), trade.ExitDate)
	suite.InDelta(90.0, trade.ExitPrice, 1e-9)
	suite.InDelta(-0.10, trade.ReturnPct, 1e-9)
}

func (suite *SimulatorTestSuite) TestStopLossIntradayTouch() {
	cfg := frictionlessConfig()

	bars := flatBars("AAA", 2, 100)
	// The open holds above the stop but the low touches it, so the fill is
	// the stop level exactly.
	bars = append(bars, types.DailyBar{
		Symbol: "AAA", Date: day(2), Open: 97, High: 98, Low: 93, Close: 94, Volume: 1000,
	})
	candidates := []types.Candidate{{Date: day(0), Symbol: "AAA", Score: 1.0}}

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	suite.Require().Len(recorder.trades, 1)

	trade := recorder.trades[0]
	suite.Equal(types.ExitReasonStopLoss, trade.ExitReason)
	suite.InDelta(95.0, trade.ExitPrice, 1e-9)
	suite.InDelta(-0.05, trade.ReturnPct, 1e-9)
}

func (suite *SimulatorTestSuite) TestEntriesRespectSlotCapacity() {
	cfg := frictionlessConfig()
	cfg.MaxPositions = 2

	var bars []types.DailyBar
	for _, symbol := range []string{"AAA", "BBB", "CCC"} {
		bars = append(bars, flatBars(symbol, 3, 100)...)
	}

	candidates := []types.Candidate{
		{Date: day(0), Symbol: "AAA", Score: 3.0},
		{Date: day(0), Symbol: "BBB", Score: 2.0},
		{Date: day(0), Symbol: "CCC", Score: 1.0},
	}

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	positions := sim.OpenPositions()
	suite.Require().Len(positions, 2)
	// Entries fill in score-rank order; the third candidate is skipped.
	suite.Equal("AAA", positions[0].Symbol)
	suite.Equal("BBB", positions[1].Symbol)

	// Capital splits evenly across the two free slots.
	suite.Equal(int64(500), positions[0].Shares)
	suite.Equal(int64(500), positions[1].Shares)
	suite.InDelta(0.0, sim.Cash(), 1e-9)

	suite.Empty(recorder.trades)
}

func (suite *SimulatorTestSuite) TestEntryFillIncludesSlippageAndCommission() {
	cfg := DefaultConfig()
	cfg.MaxPositions = 2
	cfg.Commission = 0.002
	cfg.SlippageBuy = 0.01

	bars := flatBars("AAA", 3, 100)
	candidates := []types.Candidate{{Date: day(0), Symbol: "AAA", Score: 1.0}}

	sim, _ := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	positions := sim.OpenPositions()
	suite.Require().Len(positions, 1)

	pos := positions[0]
	// Reference open 100 worsened by 1% buy slippage.
	suite.InDelta(101.0, pos.EntryPrice, 1e-9)
	// Per-slot capital is 50_000 with one of two slots filled.
	suite.Equal(int64(495), pos.Shares)

	expectedDebit := 495 * 101.0 * 1.002
	suite.InDelta(cfg.InitialCapital-expectedDebit, sim.Cash(), 1e-6)
}

func (suite *SimulatorTestSuite) TestStopLossPreemptsRuleExit() {
	cfg := frictionlessConfig()
	cfg.Horizon = 2

	bars := flatBars("AAA", 2, 100)
	// The horizon is reached this day, but the stop fires first in the daily
	// sequence, so no rule exit is ever scheduled.
	bars = append(bars, types.DailyBar{
		Symbol: "AAA", Date: day(2), Open: 96, High: 97, Low: 94, Close: 94, Volume: 1000,
	})
	bars = append(bars, flatBars("ZZZ", 4, 50)...)
	candidates := []types.Candidate{{Date: day(0), Symbol: "AAA", Score: 1.0}}

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	suite.Require().Len(recorder.trades, 1)
	suite.Equal(types.ExitReasonStopLoss, recorder.trades[0].ExitReason)
	suite.InDelta(95.0, recorder.trades[0].ExitPrice, 1e-9)
}

func (suite *SimulatorTestSuite) TestPlannedExitDeferredOnMissingBar() {
	cfg := frictionlessConfig()
	cfg.Horizon = 2

	// AAA trades on days 0-2, is halted on day 3, and resumes on day 4. ZZZ
	// keeps the trading calendar alive throughout.
	bars := flatBars("AAA", 3, 100)
	bars = append(bars, types.DailyBar{
		Symbol: "AAA", Date: day(4), Open: 102, High: 103, Low: 101, Close: 102, Volume: 1000,
	})
	bars = append(bars, flatBars("ZZZ", 5, 50)...)
	candidates := []types.Candidate{{Date: day(0), Symbol: "AAA", Score: 1.0}}

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	suite.Require().Len(recorder.trades, 1)

	trade := recorder.trades[0]
	suite.Equal(types.ExitReasonTime, trade.ExitReason)
	// Scheduled for day 3, deferred to day 4 when the bar reappears.
	suite.Equal(day(4), trade.ExitDate)
	suite.InDelta(102.0, trade.ExitPrice, 1e-9)
}

func (suite *SimulatorTestSuite) TestEquityMarksToMarketWithEntryFallback() {
	cfg := frictionlessConfig()

	// AAA has no bar on day 2, so that day's equity falls back to the entry
	// price for the position.
	bars := flatBars("AAA", 2, 100)
	bars = append(bars, flatBars("ZZZ", 3, 50)...)
	candidates := []types.Candidate{{Date: day(0), Symbol: "AAA", Score: 1.0}}

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	suite.Require().Len(recorder.equity, 3)
	// Day 0: all cash. Days 1 and 2: 200 shares at 100 plus remaining cash.
	suite.InDelta(100_000, recorder.equity[0].Equity, 1e-9)
	suite.InDelta(100_000, recorder.equity[1].Equity, 1e-9)
	suite.InDelta(100_000, recorder.equity[2].Equity, 1e-9)
}

func (suite *SimulatorTestSuite) TestCashStaysNonNegative() {
	cfg := DefaultConfig()

	bars, candidates := volatileFixture()

	sim, _ := suite.newSimulator(cfg, bars, candidates)

	onDay := OnDayCallback(func(current, total int) {
		suite.GreaterOrEqual(sim.Cash(), 0.0)
		suite.LessOrEqual(len(sim.OpenPositions()), cfg.MaxPositions)
	})

	suite.Require().NoError(sim.Run(optional.Some(onDay)))
	suite.GreaterOrEqual(sim.Cash(), 0.0)
}

func (suite *SimulatorTestSuite) TestDeterministicReplay() {
	cfg := DefaultConfig()

	bars, candidates := volatileFixture()

	first, firstRecorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(first.Run(optional.None[OnDayCallback]()))

	second, secondRecorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(second.Run(optional.None[OnDayCallback]()))

	suite.Equal(firstRecorder.trades, secondRecorder.trades)
	suite.Equal(firstRecorder.equity, secondRecorder.equity)
	suite.NotEmpty(firstRecorder.trades)
}

func (suite *SimulatorTestSuite) TestExitReasonsComeFromTheFixedSet() {
	cfg := DefaultConfig()

	bars, candidates := volatileFixture()

	sim, recorder := suite.newSimulator(cfg, bars, candidates)
	suite.Require().NoError(sim.Run(optional.None[OnDayCallback]()))

	known := make(map[types.ExitReason]bool)
	for _, reason := range types.AllExitReasons {
		known[reason] = true
	}

	for _, trade := range recorder.trades {
		suite.True(known[trade.ExitReason], "unknown exit reason %s", trade.ExitReason)
	}
}

// volatileFixture builds a multi-symbol dataset with drifting and oscillating
// prices plus rotating candidate ranks, enough to exercise entries, stops,
// and rule exits together.
func volatileFixture() ([]types.DailyBar, []types.Candidate) {
	symbols := []string{"AAA", "BBB", "CCC", "DDD"}
	drifts := []float64{0.004, -0.006, 0.001, -0.002}

	var bars []types.DailyBar

	var candidates []types.Candidate

	for s, symbol := range symbols {
		price := 100.0 + float64(s)*10

		for i := 0; i < 60; i++ {
			swing := 0.02 * float64((i+s)%3)
			open := price
			close := price * (1 + drifts[s])
			high := open * (1 + swing)
			low := open * (1 - swing)

			if close > high {
				high = close
			}

			if close < low {
				low = close
			}

			bars = append(bars, types.DailyBar{
				Symbol: symbol,
				Date:   day(i),
				Open:   open,
				High:   high,
				Low:    low,
				Close:  close,
				Volume: 1000,
			})

			price = close
		}
	}

	for i := 0; i < 60; i++ {
		for s, symbol := range symbols {
			candidates = append(candidates, types.Candidate{
				Date:   day(i),
				Symbol: symbol,
				Score:  float64((i+s)%len(symbols)) + 0.5,
			})
		}
	}

	return bars, candidates
}
