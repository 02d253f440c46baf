package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCostModel() CostModel {
	cfg := DefaultConfig()
	cfg.Commission = 0.002
	cfg.SlippageBuy = 0.01
	cfg.SlippageSell = 0.005

	return NewCostModel(cfg)
}

func TestBuyFillAddsSlippage(t *testing.T) {
	costs := testCostModel()

	assert.InDelta(t, 101.0, costs.BuyFill(100), 1e-9)
}

func TestSellFillSubtractsSlippage(t *testing.T) {
	costs := testCostModel()

	assert.InDelta(t, 99.5, costs.SellFill(100), 1e-9)
}

func TestEntryCostIncludesCommission(t *testing.T) {
	costs := testCostModel()

	// 495 shares at 101.0 is 49995 notional plus 0.2% commission.
	assert.InDelta(t, 49995*1.002, costs.EntryCost(495, 101.0), 1e-9)
}

func TestNetProceedsDeductCommission(t *testing.T) {
	costs := testCostModel()

	assert.InDelta(t, 49995*0.998, costs.NetProceeds(495, 101.0), 1e-9)
}

func TestCommissionOnNotional(t *testing.T) {
	costs := testCostModel()

	assert.InDelta(t, 100.0, costs.CommissionOn(50_000), 1e-9)
}

func TestZeroFrictionsPassPricesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Commission = 0
	cfg.SlippageBuy = 0
	cfg.SlippageSell = 0

	costs := NewCostModel(cfg)

	assert.InDelta(t, 100.0, costs.BuyFill(100), 1e-12)
	assert.InDelta(t, 100.0, costs.SellFill(100), 1e-12)
	assert.InDelta(t, 10_000.0, costs.EntryCost(100, 100), 1e-12)
	assert.InDelta(t, 10_000.0, costs.NetProceeds(100, 100), 1e-12)
}
