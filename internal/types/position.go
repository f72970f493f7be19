package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the per-symbol open position tracked by the ledger.
//
// Invariants (enforced by the ledger, not trusted to callers):
//   - at most one open Position per symbol, long only
//   - StopLoss is monotonically non-decreasing while the position is open
//   - Target is set once at open time and never recomputed
type Position struct {
	Symbol   string  `yaml:"symbol" json:"symbol" csv:"symbol"`
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// TotalInQuantity and TotalInAmount accumulate buy fills so the average
	// entry price stays correct across partial fills.
	TotalInQuantity  float64 `yaml:"total_in_quantity" json:"total_in_quantity" csv:"total_in_quantity"`
	TotalInAmount    float64 `yaml:"total_in_amount" json:"total_in_amount" csv:"total_in_amount"`
	TotalOutQuantity float64 `yaml:"total_out_quantity" json:"total_out_quantity" csv:"total_out_quantity"`
	TotalOutAmount   float64 `yaml:"total_out_amount" json:"total_out_amount" csv:"total_out_amount"`
	StopLoss         float64 `yaml:"stop_loss" json:"stop_loss" csv:"stop_loss"`
	Target           float64 `yaml:"target" json:"target" csv:"target"`
	// Reference is the last close price that advanced the trailing stop.
	// Seeded with the entry price at open time.
	Reference    float64   `yaml:"reference" json:"reference" csv:"reference"`
	OpenedAt     time.Time `yaml:"opened_at" json:"opened_at" csv:"opened_at"`
	StrategyName string    `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
}

// AverageEntryPrice calculates the quantity-weighted average entry price.
func (p *Position) AverageEntryPrice() float64 {
	if p.TotalInQuantity == 0 {
		return 0
	}

	return p.TotalInAmount / p.TotalInQuantity
}

// AverageExitPrice calculates the quantity-weighted average exit price.
func (p *Position) AverageExitPrice() float64 {
	if p.TotalOutQuantity == 0 {
		return 0
	}

	return p.TotalOutAmount / p.TotalOutQuantity
}

// TradeRecord is the immutable log entry created when a position fully
// closes. It is used only for reporting and backtest aggregation; the engine
// never reads it back.
type TradeRecord struct {
	Symbol       string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Quantity     float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	EntryPrice   float64   `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitPrice    float64   `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	OpenedAt     time.Time `yaml:"opened_at" json:"opened_at" csv:"opened_at"`
	ClosedAt     time.Time `yaml:"closed_at" json:"closed_at" csv:"closed_at"`
	Reason       Reason    `yaml:"reason" json:"reason" csv:"reason"`
	StrategyName string    `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
}

// PnL returns the realized profit/loss of the round trip using decimal
// arithmetic to avoid float accumulation drift.
func (t TradeRecord) PnL() float64 {
	qty := decimal.NewFromFloat(t.Quantity)
	entry := qty.Mul(decimal.NewFromFloat(t.EntryPrice))
	exit := qty.Mul(decimal.NewFromFloat(t.ExitPrice))
	pnl, _ := exit.Sub(entry).Float64()

	return pnl
}
