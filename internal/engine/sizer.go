package engine

import "math"

// Sizer decides how many shares to buy for a prospective entry. The stop is
// passed alongside the price so risk-based sizers can size off the distance
// to the stop.
type Sizer interface {
	Quantity(portfolioValue, cash, price, stop float64) float64
}

// RiskSizer risks a fixed fraction of portfolio value per trade: the share
// count is the dollar risk divided by the per-share distance to the stop,
// never less than one share.
type RiskSizer struct {
	// RiskFraction is the fraction of portfolio value put at risk per trade.
	RiskFraction float64
}

// Quantity implements Sizer.
func (r RiskSizer) Quantity(portfolioValue, _ float64, price, stop float64) float64 {
	perShare := price - stop
	if perShare <= 0 {
		return 1
	}

	qty := math.Floor(portfolioValue * r.RiskFraction / perShare)
	if qty < 1 {
		return 1
	}

	return qty
}

// CashSizer spends all available cash on each entry. Backtests run one
// symbol at a time, so all-in sizing is well defined there.
type CashSizer struct{}

// Quantity implements Sizer.
func (CashSizer) Quantity(_ float64, cash, price, _ float64) float64 {
	if price <= 0 {
		return 0
	}

	return math.Floor(cash / price)
}
