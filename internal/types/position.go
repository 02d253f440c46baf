package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Position represents one open slot holding. It is owned exclusively by the
// simulator: created at entry fill, mutated once per day, destroyed at exit
// fill. A symbol appears in at most one open Position at any time.
type Position struct {
	Symbol     string
	EntryPrice float64
	Shares     int64
	EntryDate  time.Time
	// DaysHeld counts completed trading days since entry. It increments once
	// per day for every position that survives the stop-loss pass.
	DaysHeld int
	// PlannedExitDate, once set, is always the next trading day relative to
	// the day the plan was made. The exit fills at that day's open.
	PlannedExitDate   optional.Option[time.Time]
	PlannedExitReason optional.Option[ExitReason]
}

// HasPlannedExit reports whether a rule exit has already been scheduled.
func (p *Position) HasPlannedExit() bool {
	return p.PlannedExitDate.IsSome()
}

// PlannedFor reports whether the position's scheduled exit falls on day.
func (p *Position) PlannedFor(day time.Time) bool {
	return p.PlannedExitDate.IsSome() && p.PlannedExitDate.Unwrap().Equal(day)
}

// UnrealizedReturn is the fractional return of the position against a
// reference price, usually the latest close.
func (p *Position) UnrealizedReturn(price float64) float64 {
	return price/p.EntryPrice - 1
}
