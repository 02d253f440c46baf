package backtest

import "github.com/shopspring/decimal"

// CostModel applies the transaction frictions: fixed fractional slippage on
// reference prices and a commission on notional, charged on both legs.
// Stop-loss fills bypass the slippage functions on purpose: the stop level
// (or the gapped open) is already a worst-case proxy, so only the commission
// applies there.
type CostModel struct {
	commission   float64
	slippageBuy  float64
	slippageSell float64
}

// NewCostModel builds the cost model from the simulation config.
func NewCostModel(cfg Config) CostModel {
	return CostModel{
		commission:   cfg.Commission,
		slippageBuy:  cfg.SlippageBuy,
		slippageSell: cfg.SlippageSell,
	}
}

// BuyFill is the entry fill price: reference * (1 + slippage_buy).
func (c CostModel) BuyFill(reference float64) float64 {
	fill, _ := decimal.NewFromFloat(reference).
		Mul(decimal.NewFromFloat(1 + c.slippageBuy)).
		Float64()

	return fill
}

// SellFill is the planned-exit fill price: reference * (1 - slippage_sell).
func (c CostModel) SellFill(reference float64) float64 {
	fill, _ := decimal.NewFromFloat(reference).
		Mul(decimal.NewFromFloat(1 - c.slippageSell)).
		Float64()

	return fill
}

// CommissionOn returns the commission charged on a notional amount.
func (c CostModel) CommissionOn(notional float64) float64 {
	fee, _ := decimal.NewFromFloat(notional).
		Mul(decimal.NewFromFloat(c.commission)).
		Float64()

	return fee
}

// EntryCost is the total cash debit for an entry: shares * fill price plus
// commission on the notional.
func (c CostModel) EntryCost(shares int64, fill float64) float64 {
	notional := decimal.NewFromInt(shares).Mul(decimal.NewFromFloat(fill))
	total, _ := notional.
		Add(notional.Mul(decimal.NewFromFloat(c.commission))).
		Float64()

	return total
}

// NetProceeds is the cash credit for an exit: shares * fill price minus
// commission on the notional.
func (c CostModel) NetProceeds(shares int64, fill float64) float64 {
	notional := decimal.NewFromInt(shares).Mul(decimal.NewFromFloat(fill))
	net, _ := notional.
		Sub(notional.Mul(decimal.NewFromFloat(c.commission))).
		Float64()

	return net
}
