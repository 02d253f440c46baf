// Package backtest implements the slot-based portfolio simulator: a
// day-by-day state machine that owns cash, open positions, and pending
// exits, applies the cost model, and emits ledger records.
package backtest

import (
	"math"
	"slices"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/aleynatasdemir/QuantTrade/internal/feed"
	"github.com/aleynatasdemir/QuantTrade/internal/logger"
	"github.com/aleynatasdemir/QuantTrade/internal/types"
	"github.com/aleynatasdemir/QuantTrade/pkg/errors"
)

// Recorder receives the simulator's output streams. Trade records are
// appended once per closed position, equity points once per simulated day.
type Recorder interface {
	RecordTrade(trade types.Trade) error
	RecordEquity(point types.EquityPoint) error
}

// IndicatorView serves precomputed indicator rows by (symbol, day).
type IndicatorView interface {
	RowOn(symbol string, day time.Time) optional.Option[types.IndicatorRow]
}

// OnDayCallback reports progress after each simulated trading day.
type OnDayCallback func(current int, total int)

// Simulator advances one trading day at a time. State is owned exclusively
// by the simulator and never accessed concurrently; two runs with identical
// inputs and parameters produce identical output streams.
type Simulator struct {
	cfg        Config
	costs      CostModel
	prices     feed.PriceFeed
	scores     feed.ScoreFeed
	indicators IndicatorView
	recorder   Recorder
	log        *logger.Logger

	cash      float64
	positions []*types.Position
}

// NewSimulator validates the config and wires the simulator's collaborators.
func NewSimulator(
	cfg Config,
	prices feed.PriceFeed,
	scores feed.ScoreFeed,
	indicators IndicatorView,
	recorder Recorder,
	log *logger.Logger,
) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Simulator{
		cfg:        cfg,
		costs:      NewCostModel(cfg),
		prices:     prices,
		scores:     scores,
		indicators: indicators,
		recorder:   recorder,
		log:        log,
		cash:       cfg.InitialCapital,
		positions:  nil,
	}, nil
}

// Cash returns the current cash balance.
func (s *Simulator) Cash() float64 {
	return s.cash
}

// OpenPositions returns a snapshot of the open position set.
func (s *Simulator) OpenPositions() []types.Position {
	out := make([]types.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, *pos)
	}

	return out
}

// Run executes the simulation over every trading day in the configured
// window. The per-day sequence is fixed: planned exits, stop-losses,
// exit-rule scheduling, entries, mark-to-market.
func (s *Simulator) Run(onDay optional.Option[OnDayCallback]) error {
	days, err := s.preRunCheck()
	if err != nil {
		return err
	}

	s.log.Info("Starting simulation",
		zap.Int("trading_days", len(days)),
		zap.Float64("initial_capital", s.cfg.InitialCapital),
		zap.Int("max_positions", s.cfg.MaxPositions),
	)

	for i, day := range days {
		next := optional.None[time.Time]()
		if i+1 < len(days) {
			next = optional.Some(days[i+1])
		}

		if err := s.step(day, next); err != nil {
			return errors.Wrapf(errors.ErrCodeSimulationAborted, err, "simulation failed on %s", day.Format("2006-01-02"))
		}

		if onDay.IsSome() {
			onDay.Unwrap()(i+1, len(days))
		}
	}

	s.log.Info("Simulation finished",
		zap.Float64("final_cash", s.cash),
		zap.Int("open_positions", len(s.positions)),
	)

	return nil
}

func (s *Simulator) preRunCheck() ([]time.Time, error) {
	if s.prices == nil {
		return nil, errors.New(errors.ErrCodeSimulationPreCheck, "no price feed set")
	}

	if s.scores == nil {
		return nil, errors.New(errors.ErrCodeSimulationPreCheck, "no score feed set")
	}

	if s.indicators == nil {
		return nil, errors.New(errors.ErrCodeSimulationPreCheck, "no indicator view set")
	}

	if s.recorder == nil {
		return nil, errors.New(errors.ErrCodeSimulationPreCheck, "no recorder set")
	}

	days, err := s.prices.TradingDays(s.cfg.StartTime, s.cfg.EndTime)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSimulationPreCheck, "failed to read trading days", err)
	}

	if len(days) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyPriceFeed, "price feed has no trading days in the simulated window")
	}

	return days, nil
}

// step runs the five-phase transition for one trading day.
func (s *Simulator) step(day time.Time, next optional.Option[time.Time]) error {
	if err := s.executePlannedExits(day); err != nil {
		return err
	}

	if err := s.checkStopLosses(day); err != nil {
		return err
	}

	candidates, err := s.scores.CandidatesOn(day)
	if err != nil {
		return err
	}

	if len(candidates) > s.cfg.TopK {
		candidates = candidates[:s.cfg.TopK]
	}

	if err := s.scheduleRuleExits(day, next, candidates); err != nil {
		return err
	}

	if err := s.openEntries(next, candidates); err != nil {
		return err
	}

	return s.markToMarket(day)
}

// executePlannedExits fills every exit scheduled for today at the open,
// discounted by sell slippage. A position whose symbol has no bar today is
// deferred and retried on a later day when a bar appears.
func (s *Simulator) executePlannedExits(day time.Time) error {
	for i := len(s.positions) - 1; i >= 0; i-- {
		pos := s.positions[i]
		if !pos.HasPlannedExit() || pos.PlannedExitDate.Unwrap().After(day) {
			continue
		}

		bar, err := s.prices.BarOn(pos.Symbol, day)
		if err != nil {
			return err
		}

		if bar.IsNone() {
			continue
		}

		fill := s.costs.SellFill(bar.Unwrap().Open)
		reason := pos.PlannedExitReason.TakeOr(types.ExitReasonPlanned)

		if err := s.closePosition(i, day, fill, reason); err != nil {
			return err
		}
	}

	return nil
}

// checkStopLosses fills intraday stops against today's bar. The fill is the
// open on a gap down, otherwise exactly the stop level; no slippage either
// way. Every position that survives (including ones with no bar today) has
// its holding age incremented — this is the single days_held increment of
// the daily transition.
func (s *Simulator) checkStopLosses(day time.Time) error {
	for i := len(s.positions) - 1; i >= 0; i-- {
		pos := s.positions[i]

		bar, err := s.prices.BarOn(pos.Symbol, day)
		if err != nil {
			return err
		}

		if bar.IsNone() {
			pos.DaysHeld++

			continue
		}

		b := bar.Unwrap()
		stopLevel := pos.EntryPrice * (1 + s.cfg.StopLoss)

		if b.Low <= stopLevel {
			fill := stopLevel
			if b.Open <= stopLevel {
				fill = b.Open
			}

			if err := s.closePosition(i, day, fill, types.ExitReasonStopLoss); err != nil {
				return err
			}

			continue
		}

		pos.DaysHeld++
	}

	return nil
}

// scheduleRuleExits evaluates the rule chain for every position with no
// plan yet. Rules fire in fixed priority, first match wins, and schedule
// the exit for the next trading day. Decisions only read today's data.
func (s *Simulator) scheduleRuleExits(day time.Time, next optional.Option[time.Time], candidates []types.Candidate) error {
	topSymbols := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		topSymbols[c.Symbol] = true
	}

	for _, pos := range s.positions {
		if pos.HasPlannedExit() {
			continue
		}

		if next.IsNone() {
			continue
		}

		bar, err := s.prices.BarOn(pos.Symbol, day)
		if err != nil {
			return err
		}

		if bar.IsNone() {
			continue
		}

		ret := pos.UnrealizedReturn(bar.Unwrap().Close)
		inTop := topSymbols[pos.Symbol]

		reason, matched := s.matchExitRule(pos, day, ret, inTop)
		if !matched {
			continue
		}

		pos.PlannedExitDate = optional.Some(next.Unwrap())
		pos.PlannedExitReason = optional.Some(reason)

		s.log.Debug("Exit scheduled",
			zap.String("symbol", pos.Symbol),
			zap.String("reason", string(reason)),
			zap.Time("exit_date", next.Unwrap()),
			zap.Int("days_held", pos.DaysHeld),
			zap.Float64("unrealized_return", ret),
		)
	}

	return nil
}

// matchExitRule walks the rule chain in priority order. The order is part
// of the strategy: reordering changes simulated outcomes.
func (s *Simulator) matchExitRule(pos *types.Position, day time.Time, ret float64, inTop bool) (types.ExitReason, bool) {
	// Performance fail: past the patience window, still underwater, and the
	// model no longer ranks the symbol.
	if pos.DaysHeld >= s.cfg.PatienceDays && ret < s.cfg.PerfFailReturn && !inTop {
		return types.ExitReasonPerfFail, true
	}

	// Stagnation: the full stagnation window has been flat and the position
	// has nothing to show for its slot.
	row := s.indicators.RowOn(pos.Symbol, day)
	if pos.DaysHeld > s.cfg.StagnationMinHoldDays &&
		row.IsSome() && row.Unwrap().Stagnant3DCount >= s.cfg.Indicator.StagnationWindow &&
		ret < s.cfg.StagnationMaxReturn {
		return types.ExitReasonStagnation, true
	}

	// Relative weakness: negative short-term momentum, symbol unranked.
	if pos.DaysHeld > s.cfg.WeaknessMinHoldDays &&
		row.IsSome() && row.Unwrap().IsRSWeak && !inTop {
		return types.ExitReasonWeakRS, true
	}

	// Time stop.
	if pos.DaysHeld >= s.cfg.Horizon {
		return types.ExitReasonTime, true
	}

	// Model take profit: target hit and the model has moved on.
	if ret >= s.cfg.TakeProfit && !inTop {
		return types.ExitReasonModelTP, true
	}

	return "", false
}

// openEntries fills free slots from the ranked candidate pool. Fills use
// the next day's open plus buy slippage; per-slot capital is recomputed
// after every fill so remaining cash is redistributed. Candidates that
// cannot be filled are skipped, not retried.
func (s *Simulator) openEntries(next optional.Option[time.Time], candidates []types.Candidate) error {
	freeSlots := s.cfg.MaxPositions - len(s.positions)
	if freeSlots <= 0 || next.IsNone() {
		return nil
	}

	nextDay := next.Unwrap()

	for _, candidate := range candidates {
		if freeSlots <= 0 {
			break
		}

		if s.holds(candidate.Symbol) {
			continue
		}

		bar, err := s.prices.BarOn(candidate.Symbol, nextDay)
		if err != nil {
			return err
		}

		if bar.IsNone() {
			continue
		}

		fill := s.costs.BuyFill(bar.Unwrap().Open)
		if fill <= 0 {
			continue
		}

		capitalPerSlot := s.cash / float64(freeSlots)

		shares := int64(math.Floor(capitalPerSlot / fill))
		if shares <= 0 {
			continue
		}

		totalCost := s.costs.EntryCost(shares, fill)
		if totalCost > s.cash {
			continue
		}

		s.cash -= totalCost
		s.positions = append(s.positions, &types.Position{
			Symbol:            candidate.Symbol,
			EntryPrice:        fill,
			Shares:            shares,
			EntryDate:         nextDay,
			DaysHeld:          0,
			PlannedExitDate:   optional.None[time.Time](),
			PlannedExitReason: optional.None[types.ExitReason](),
		})
		freeSlots--

		s.log.Debug("Entry filled",
			zap.String("symbol", candidate.Symbol),
			zap.Time("entry_date", nextDay),
			zap.Float64("fill", fill),
			zap.Int64("shares", shares),
			zap.Float64("score", candidate.Score),
			zap.Float64("cash", s.cash),
		)
	}

	return nil
}

// markToMarket values open positions at today's close, falling back to the
// entry price when the symbol has no bar, and records the equity point.
func (s *Simulator) markToMarket(day time.Time) error {
	value := 0.0

	for _, pos := range s.positions {
		bar, err := s.prices.BarOn(pos.Symbol, day)
		if err != nil {
			return err
		}

		price := pos.EntryPrice
		if bar.IsSome() {
			price = bar.Unwrap().Close
		}

		value += float64(pos.Shares) * price
	}

	return s.recorder.RecordEquity(types.EquityPoint{
		Date:   day,
		Equity: s.cash + value,
	})
}

// closePosition fills an exit, credits net proceeds, emits the trade record
// and removes the position.
func (s *Simulator) closePosition(index int, day time.Time, fill float64, reason types.ExitReason) error {
	pos := s.positions[index]

	s.cash += s.costs.NetProceeds(pos.Shares, fill)

	trade := types.Trade{
		Symbol:     pos.Symbol,
		EntryDate:  pos.EntryDate,
		EntryPrice: pos.EntryPrice,
		ExitDate:   day,
		ExitPrice:  fill,
		ReturnPct:  fill/pos.EntryPrice - 1,
		ExitReason: reason,
		DaysHeld:   pos.DaysHeld,
	}

	if err := s.recorder.RecordTrade(trade); err != nil {
		return err
	}

	s.positions = slices.Delete(s.positions, index, index+1)

	s.log.Debug("Position closed",
		zap.String("symbol", trade.Symbol),
		zap.String("reason", string(reason)),
		zap.Float64("fill", fill),
		zap.Float64("return_pct", trade.ReturnPct),
		zap.Float64("cash", s.cash),
	)

	return nil
}

func (s *Simulator) holds(symbol string) bool {
	for _, pos := range s.positions {
		if pos.Symbol == symbol {
			return true
		}
	}

	return false
}
