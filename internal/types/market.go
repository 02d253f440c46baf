package types

import "time"

// DailyBar represents a single daily OHLCV bar for a symbol. It is the
// source of truth for every price-dependent decision in the simulator.
type DailyBar struct {
	Symbol string    `csv:"symbol"`
	Date   time.Time `csv:"date"`
	Open   float64   `csv:"open"`
	High   float64   `csv:"high"`
	Low    float64   `csv:"low"`
	Close  float64   `csv:"close"`
	Volume float64   `csv:"volume"`
}

// Candidate is one externally-scored entry candidate for a trading day.
// Higher score means more attractive.
type Candidate struct {
	Date   time.Time `csv:"date"`
	Symbol string    `csv:"symbol"`
	Score  float64   `csv:"score"`
}

// EquityPoint is one mark-to-market snapshot of total equity
// (cash + open position value) for a simulated trading day.
type EquityPoint struct {
	Date   time.Time `csv:"date"`
	Equity float64   `csv:"equity"`
}
