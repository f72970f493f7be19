package engine

import (
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// Ledger tracks open positions and emits trade records when they close.
// It enforces the position invariants:
//   - at most one open position per symbol, long only
//   - stop losses only ever move up
//   - the target is fixed at open time
type Ledger struct {
	mu        sync.Mutex
	positions map[string]types.Position
	records   []types.TradeRecord
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		positions: make(map[string]types.Position),
	}
}

// Open creates a position from the first buy fill. Stop and target come from
// the entry decision; the reference price for the trailing ratchet is seeded
// with the fill price.
func (l *Ledger) Open(symbol string, quantity, price, stop, target float64, at time.Time, strategyName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[symbol]; ok {
		return errors.Newf(errors.ErrCodePositionAlreadyOpen, "position already open for %s", symbol)
	}

	if quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "open quantity must be positive, got %f", quantity)
	}

	amount, _ := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(price)).Float64()

	l.positions[symbol] = types.Position{
		Symbol:          symbol,
		Quantity:        quantity,
		TotalInQuantity: quantity,
		TotalInAmount:   amount,
		StopLoss:        stop,
		Target:          target,
		Reference:       price,
		OpenedAt:        at,
		StrategyName:    strategyName,
	}

	return nil
}

// ApplyFill applies an incremental fill to an open position. Buy fills
// accumulate into the entry averages; sell fills accumulate into the exit
// averages and reduce the quantity. When the quantity reaches zero the
// position closes and the round trip's trade record is returned.
//
// Quantities can be fractional on crypto venues, so all accumulation runs
// through decimal arithmetic: a position sold off in partial fills lands on
// exactly zero instead of float dust.
func (l *Ledger) ApplyFill(symbol string, side types.Side, quantity, price float64, at time.Time, reason types.Reason) (optional.Option[types.TradeRecord], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return optional.None[types.TradeRecord](), errors.Newf(errors.ErrCodePositionNotOpen, "no open position for %s", symbol)
	}

	if quantity <= 0 {
		return optional.None[types.TradeRecord](), errors.Newf(errors.ErrCodeInvalidParameter, "fill quantity must be positive, got %f", quantity)
	}

	qty := decimal.NewFromFloat(quantity)
	amount := qty.Mul(decimal.NewFromFloat(price))

	switch side {
	case types.SideBuy:
		pos.Quantity, _ = decimal.NewFromFloat(pos.Quantity).Add(qty).Float64()
		pos.TotalInQuantity, _ = decimal.NewFromFloat(pos.TotalInQuantity).Add(qty).Float64()
		pos.TotalInAmount, _ = decimal.NewFromFloat(pos.TotalInAmount).Add(amount).Float64()
	case types.SideSell:
		open := decimal.NewFromFloat(pos.Quantity)
		if qty.GreaterThan(open) {
			return optional.None[types.TradeRecord](), errors.Newf(errors.ErrCodeOverfill, "sell fill %f exceeds open quantity %f for %s", quantity, pos.Quantity, symbol)
		}

		pos.Quantity, _ = open.Sub(qty).Float64()
		pos.TotalOutQuantity, _ = decimal.NewFromFloat(pos.TotalOutQuantity).Add(qty).Float64()
		pos.TotalOutAmount, _ = decimal.NewFromFloat(pos.TotalOutAmount).Add(amount).Float64()
	}

	if pos.Quantity == 0 {
		delete(l.positions, symbol)

		record := types.TradeRecord{
			Symbol:       symbol,
			Quantity:     pos.TotalOutQuantity,
			EntryPrice:   pos.AverageEntryPrice(),
			ExitPrice:    pos.AverageExitPrice(),
			OpenedAt:     pos.OpenedAt,
			ClosedAt:     at,
			Reason:       reason,
			StrategyName: pos.StrategyName,
		}
		l.records = append(l.records, record)

		return optional.Some(record), nil
	}

	l.positions[symbol] = pos

	return optional.None[types.TradeRecord](), nil
}

// RaiseStop moves the stop loss up and advances the trailing reference. A
// proposal at or below the current stop is dropped silently; stops never
// loosen.
func (l *Ledger) RaiseStop(symbol string, newStop, newReference float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return
	}

	if newStop <= pos.StopLoss {
		return
	}

	pos.StopLoss = newStop
	if newReference > pos.Reference {
		pos.Reference = newReference
	}

	l.positions[symbol] = pos
}

// Adopt installs an externally reported position, used when reconciling the
// ledger with the broker at startup.
func (l *Ledger) Adopt(pos types.Position) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[pos.Symbol]; ok {
		return errors.Newf(errors.ErrCodePositionAlreadyOpen, "position already open for %s", pos.Symbol)
	}

	l.positions[pos.Symbol] = pos

	return nil
}

// Position returns the open position for the symbol, if any.
func (l *Ledger) Position(symbol string) optional.Option[types.Position] {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return optional.None[types.Position]()
	}

	return optional.Some(pos)
}

// OpenPositions returns a snapshot of all open positions.
func (l *Ledger) OpenPositions() []types.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, pos)
	}

	return out
}

// TakeRecords returns the trade records accumulated since the last call and
// clears them. The backtest driver drains this once per day to compute daily
// returns.
func (l *Ledger) TakeRecords() []types.TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.records
	l.records = nil

	return out
}
