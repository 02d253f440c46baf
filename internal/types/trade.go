package types

import "time"

// ExitReason identifies the single rule that closed a position.
type ExitReason string

const (
	// ExitReasonStopLoss is an intraday stop fill, same-day, no slippage.
	ExitReasonStopLoss ExitReason = "STOP_LOSS"
	// ExitReasonPerfFail closes a position still underwater after the
	// patience window when the model no longer ranks it.
	ExitReasonPerfFail ExitReason = "PERF_FAIL"
	// ExitReasonStagnation closes a low-volatility, flat-trend position
	// with nothing to show for it.
	ExitReasonStagnation ExitReason = "STAGNATION_EXIT"
	// ExitReasonWeakRS closes a position with negative 5-day momentum that
	// the model no longer ranks.
	ExitReasonWeakRS ExitReason = "WEAK_RS_EXIT"
	// ExitReasonTime closes a position held for the full horizon.
	ExitReasonTime ExitReason = "TIME_EXIT"
	// ExitReasonModelTP takes profit once the target is hit and the model
	// no longer ranks the symbol.
	ExitReasonModelTP ExitReason = "MODEL_TP"
	// ExitReasonPlanned is the fallback for a scheduled exit whose reason
	// was never recorded.
	ExitReasonPlanned ExitReason = "PLANNED"
)

// AllExitReasons lists every reason a Trade may carry, in reporting order.
var AllExitReasons = []ExitReason{
	ExitReasonStopLoss,
	ExitReasonPerfFail,
	ExitReasonStagnation,
	ExitReasonWeakRS,
	ExitReasonTime,
	ExitReasonModelTP,
	ExitReasonPlanned,
}

// Trade is the immutable ledger record of one closed position.
type Trade struct {
	Symbol     string     `csv:"symbol"`
	EntryDate  time.Time  `csv:"entry_date"`
	EntryPrice float64    `csv:"entry_price"`
	ExitDate   time.Time  `csv:"exit_date"`
	ExitPrice  float64    `csv:"exit_price"`
	// ReturnPct is exit/entry - 1, before commission.
	ReturnPct  float64    `csv:"return_pct"`
	ExitReason ExitReason `csv:"exit_reason"`
	DaysHeld   int        `csv:"days_held"`
}

// IsWin reports whether the trade closed with a positive return.
func (t Trade) IsWin() bool {
	return t.ReturnPct > 0
}
