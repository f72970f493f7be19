// Package broker defines the engine's execution boundary: order submission,
// bar feeds and account state. The engine only ever sees these interfaces;
// whether fills come from a simulator or a real brokerage is invisible to it.
package broker

import (
	"context"
	"time"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// OrderUpdate is an asynchronous execution event for a submitted order.
// Partial fills report the incremental quantity filled by this event, not
// the cumulative total.
type OrderUpdate struct {
	OrderID   string
	Symbol    string
	Side      types.Side
	Status    types.OrderStatus
	FilledQty float64
	FillPrice float64
	Timestamp time.Time
	// Reason is set on rejections/cancellations.
	Reason string
}

// Executor submits and cancels orders. Submissions are fire-and-forget: the
// outcome arrives later as OrderUpdate events.
type Executor interface {
	// SubmitOrder submits an order intent and returns the broker order ID.
	SubmitOrder(ctx context.Context, intent types.OrderIntent) (string, error)
	// CancelOrder cancels an outstanding order by broker order ID.
	CancelOrder(ctx context.Context, orderID string) error
}

// Feed is a real-time bar stream.
type Feed interface {
	// Subscribe starts streaming bars for the symbols. The channel closes
	// when the context is cancelled or the feed fails.
	Subscribe(ctx context.Context, symbols []string) (<-chan types.Bar, error)
}

// UpdateStream delivers asynchronous order updates, e.g. from a user data
// websocket. The channel closes when the context is cancelled or the stream
// fails.
type UpdateStream interface {
	OrderUpdates(ctx context.Context) (<-chan OrderUpdate, error)
}

// PriceSource reports the current market price of a symbol.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// AccountState is the broker-reported account snapshot.
type AccountState struct {
	Cash           float64
	PortfolioValue float64
}

// Account exposes the broker's view of the account, used only at startup to
// reconcile the ledger with reality.
type Account interface {
	GetAccountState(ctx context.Context) (AccountState, error)
	// ListOpenPositions returns broker-reported open positions.
	ListOpenPositions(ctx context.Context) ([]types.Position, error)
	// CancelOpenOrders cancels any outstanding orders for the symbols.
	CancelOpenOrders(ctx context.Context, symbols []string) error
}
