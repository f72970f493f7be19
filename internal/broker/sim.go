package broker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// SimulatedExecutor fills every order exactly and immediately at the
// intent's limit price, or at the last observed price for market orders.
// Fills are queued rather than delivered synchronously so the caller can
// finish processing the current bar before draining them; this keeps the
// bar -> decision -> fill ordering deterministic in backtests and paper
// trading.
type SimulatedExecutor struct {
	mu        sync.Mutex
	updates   []OrderUpdate
	lastPrice map[string]float64
	cancelled map[string]bool
	failNext  map[string]string
}

// NewSimulatedExecutor creates an empty simulator.
func NewSimulatedExecutor() *SimulatedExecutor {
	return &SimulatedExecutor{
		updates:   nil,
		lastPrice: make(map[string]float64),
		cancelled: make(map[string]bool),
		failNext:  make(map[string]string),
	}
}

// ObserveBar records the latest price for market-order fills.
func (s *SimulatedExecutor) ObserveBar(bar types.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPrice[bar.Symbol] = bar.Close
}

// SubmitOrder implements Executor.
func (s *SimulatedExecutor) SubmitOrder(_ context.Context, intent types.OrderIntent) (string, error) {
	if err := intent.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	orderID := uuid.New().String()

	if reason, ok := s.failNext[intent.Symbol]; ok {
		delete(s.failNext, intent.Symbol)
		s.updates = append(s.updates, OrderUpdate{
			OrderID:   orderID,
			Symbol:    intent.Symbol,
			Side:      intent.Side,
			Status:    types.OrderStatusRejected,
			FilledQty: 0,
			FillPrice: 0,
			Timestamp: intent.SubmittedAt,
			Reason:    reason,
		})

		return orderID, nil
	}

	price := 0.0

	switch intent.OrderType {
	case types.OrderTypeLimit:
		price = intent.LimitPrice.Unwrap()
	case types.OrderTypeMarket:
		last, ok := s.lastPrice[intent.Symbol]
		if !ok {
			return "", errors.Newf(errors.ErrCodeOrderFailed, "no market price observed for %s", intent.Symbol)
		}

		price = last
	}

	s.updates = append(s.updates, OrderUpdate{
		OrderID:   orderID,
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Status:    types.OrderStatusFilled,
		FilledQty: intent.Quantity,
		FillPrice: price,
		Timestamp: intent.SubmittedAt,
		Reason:    "",
	})

	return orderID, nil
}

// CancelOrder implements Executor. Simulated fills are instantaneous, so a
// cancel can only arrive after the fill; it is recorded and ignored.
func (s *SimulatedExecutor) CancelOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled[orderID] = true

	return nil
}

// Drain returns and clears the queued updates in submission order.
func (s *SimulatedExecutor) Drain() []OrderUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.updates
	s.updates = nil

	return out
}

// FailNextOrder makes the next submission for the symbol come back rejected
// instead of filled. Used to exercise the engine's local-recovery path.
func (s *SimulatedExecutor) FailNextOrder(symbol, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failNext[symbol] = reason
}
