// Package engine contains the trading state machine that sits between a
// strategy evaluator and an order executor. One engine instance manages many
// symbols; each symbol moves independently through flat, pending-entry, open
// and pending-exit states as decisions are made and fills arrive.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/derekmborges/algorithmic-trading/internal/broker"
	"github.com/derekmborges/algorithmic-trading/internal/logger"
	"github.com/derekmborges/algorithmic-trading/internal/metrics"
	"github.com/derekmborges/algorithmic-trading/internal/notify"
	"github.com/derekmborges/algorithmic-trading/internal/strategy"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// State is the per-symbol order lifecycle state.
type State string

const (
	StateFlat         State = "FLAT"
	StatePendingEntry State = "PENDING_ENTRY"
	StateOpen         State = "OPEN"
	StatePendingExit  State = "PENDING_EXIT"
)

// Config holds the engine's own tunables. Strategy parameters live in the
// evaluator's config, not here.
type Config struct {
	// CloseoutMinutes before market close the engine liquidates open
	// positions and deregisters flat symbols regardless of strategy signals.
	CloseoutMinutes int `yaml:"closeout_minutes"`
	// StaleOrderTimeout cancels a pending order that has not resolved within
	// this duration of bar time.
	StaleOrderTimeout time.Duration `yaml:"stale_order_timeout"`
}

// DefaultConfig returns the engine defaults used by both backtests and
// paper trading.
func DefaultConfig() Config {
	return Config{
		CloseoutMinutes:   15,
		StaleOrderTimeout: time.Minute,
	}
}

// Recorder persists order and trade events. The backtest store writes them
// to DuckDB; live runs may use a no-op.
type Recorder interface {
	RecordOrder(order types.Order) error
	RecordTrade(trade types.TradeRecord) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordOrder(types.Order) error       { return nil }
func (NopRecorder) RecordTrade(types.TradeRecord) error { return nil }

// Deps wires the engine's collaborators. Evaluator, Executor, Ledger, Sizer
// and History are required; the rest default to no-ops.
type Deps struct {
	Evaluator strategy.Evaluator
	Executor  broker.Executor
	Ledger    *Ledger
	Sizer     Sizer
	History   strategy.History
	// Account reports cash and portfolio value for position sizing.
	Account  func() broker.AccountState
	Logger   *logger.Logger
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Recorder Recorder
}

type symbolState struct {
	state       State
	orderID     string
	submittedAt time.Time
	// Stop/target from the entry decision, applied when the entry fill
	// arrives. Exit reason likewise travels from decision to fill.
	pendingStop   float64
	pendingTarget float64
	pendingReason types.Reason
	// closeout marks that the in-flight exit is the end-of-day liquidation;
	// its fill deregisters the symbol.
	closeout     bool
	deregistered bool
}

// Engine drives one evaluator over a set of symbols for a single trading
// session. OnBar and OnOrderUpdate for the same symbol are serialized; calls
// for different symbols may run concurrently.
type Engine struct {
	cfg     Config
	session types.SessionWindow
	deps    Deps

	symbols map[string]*symbolState
	locks   map[string]*keyedLock
}

type keyedLock struct {
	ch chan struct{}
}

func newKeyedLock() *keyedLock {
	l := &keyedLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}

	return l
}

func (l *keyedLock) lock()   { <-l.ch }
func (l *keyedLock) unlock() { l.ch <- struct{}{} }

// NewEngine validates the dependencies and registers the symbols. Symbols
// not registered here are ignored by OnBar.
func NewEngine(cfg Config, session types.SessionWindow, symbols []string, deps Deps) (*Engine, error) {
	if deps.Evaluator == nil || deps.Executor == nil || deps.Ledger == nil || deps.Sizer == nil || deps.History == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "engine requires evaluator, executor, ledger, sizer and history")
	}

	if cfg.CloseoutMinutes < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "closeout minutes must not be negative, got %d", cfg.CloseoutMinutes)
	}

	if cfg.StaleOrderTimeout <= 0 {
		cfg.StaleOrderTimeout = time.Minute
	}

	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}

	if deps.Account == nil {
		deps.Account = func() broker.AccountState { return broker.AccountState{} }
	}

	e := &Engine{
		cfg:     cfg,
		session: session,
		deps:    deps,
		symbols: make(map[string]*symbolState, len(symbols)),
		locks:   make(map[string]*keyedLock, len(symbols)),
	}

	for _, s := range symbols {
		state := StateFlat
		if e.deps.Ledger.Position(s).IsSome() {
			state = StateOpen
		}

		e.symbols[s] = &symbolState{state: state}
		e.locks[s] = newKeyedLock()
	}

	return e, nil
}

// OnBar processes one completed bar for a registered symbol.
func (e *Engine) OnBar(ctx context.Context, bar types.Bar) error {
	st, lock, ok := e.stateFor(bar.Symbol)
	if !ok {
		return nil
	}

	lock.lock()
	defer lock.unlock()

	if st.deregistered {
		return nil
	}

	if err := bar.Validate(); err != nil {
		return err
	}

	e.cancelIfStale(ctx, bar, st)

	if e.session.MinutesUntilClose(bar.Time) <= e.cfg.CloseoutMinutes {
		return e.closeoutSymbol(ctx, bar, st)
	}

	position := e.deps.Ledger.Position(bar.Symbol)

	decision, err := e.deps.Evaluator.Evaluate(strategy.Context{Session: e.session, History: e.deps.History}, bar, position)
	if err != nil {
		if errors.IsInsufficientDataError(err) {
			e.deps.Logger.Debug("insufficient data for evaluation", zap.String("symbol", bar.Symbol), zap.Error(err))

			return nil
		}

		return errors.Wrapf(errors.ErrCodeIndicatorCalculation, err, "evaluation failed for %s", bar.Symbol)
	}

	switch decision.Action {
	case types.ActionEnter:
		if st.state != StateFlat || position.IsSome() {
			return nil
		}

		return e.submitEntry(ctx, bar, st, decision)
	case types.ActionExit:
		if st.state != StateOpen {
			return nil
		}

		return e.submitExit(ctx, bar, st, position.Unwrap(), decision.Reason, false)
	case types.ActionNone:
		if decision.Stop.IsSome() && st.state == StateOpen {
			e.deps.Ledger.RaiseStop(bar.Symbol, decision.Stop.Unwrap(), bar.Close)
		}
	}

	return nil
}

// OnOrderUpdate applies an execution event to the symbol's state machine and
// the ledger.
func (e *Engine) OnOrderUpdate(ctx context.Context, update broker.OrderUpdate) error {
	st, lock, ok := e.stateFor(update.Symbol)
	if !ok {
		return nil
	}

	lock.lock()
	defer lock.unlock()

	switch update.Status {
	case types.OrderStatusFilled, types.OrderStatusPartiallyFilled:
		if update.FilledQty <= 0 {
			return nil
		}

		return e.applyFill(ctx, update, st)
	case types.OrderStatusRejected, types.OrderStatusCancelled:
		e.deps.Logger.Warn("order not executed",
			zap.String("symbol", update.Symbol),
			zap.String("order_id", update.OrderID),
			zap.String("status", string(update.Status)),
			zap.String("reason", update.Reason),
		)
		e.deps.Metrics.OrderRejected(string(update.Side))
		e.revertPending(update.Symbol, st)
	}

	return nil
}

// Done reports whether every registered symbol has been deregistered for the
// session.
func (e *Engine) Done() bool {
	for symbol, lock := range e.locks {
		lock.lock()
		deregistered := e.symbols[symbol].deregistered
		lock.unlock()

		if !deregistered {
			return false
		}
	}

	return true
}

// Ledger exposes the engine's ledger for reporting.
func (e *Engine) Ledger() *Ledger {
	return e.deps.Ledger
}

func (e *Engine) stateFor(symbol string) (*symbolState, *keyedLock, bool) {
	st, ok := e.symbols[symbol]
	if !ok {
		return nil, nil, false
	}

	return st, e.locks[symbol], true
}

// cancelIfStale cancels a pending order that outlived the timeout and falls
// the state machine back to what the ledger says is real.
func (e *Engine) cancelIfStale(ctx context.Context, bar types.Bar, st *symbolState) {
	if st.state != StatePendingEntry && st.state != StatePendingExit {
		return
	}

	if bar.Time.Sub(st.submittedAt) <= e.cfg.StaleOrderTimeout {
		return
	}

	if err := e.deps.Executor.CancelOrder(ctx, st.orderID); err != nil {
		e.deps.Logger.Error("failed to cancel stale order",
			zap.String("symbol", bar.Symbol),
			zap.String("order_id", st.orderID),
			zap.Error(err),
		)

		return
	}

	e.deps.Logger.Info("cancelled stale order",
		zap.String("symbol", bar.Symbol),
		zap.String("order_id", st.orderID),
		zap.String("state", string(st.state)),
	)
	e.deps.Metrics.StaleOrderCancelled()
	e.revertPending(bar.Symbol, st)
}

// closeoutSymbol handles the end-of-day window: liquidate open positions at
// market and deregister flat symbols. Pending orders are left to resolve or
// go stale.
func (e *Engine) closeoutSymbol(ctx context.Context, bar types.Bar, st *symbolState) error {
	switch st.state {
	case StateOpen:
		position := e.deps.Ledger.Position(bar.Symbol)
		if position.IsNone() {
			st.state = StateFlat

			return nil
		}

		reason := types.Reason{Reason: types.OrderReasonSessionClose, Message: "market close liquidation"}

		return e.submitExit(ctx, bar, st, position.Unwrap(), reason, true)
	case StateFlat:
		st.deregistered = true
		e.deps.Logger.Info("symbol deregistered for the day", zap.String("symbol", bar.Symbol))
	}

	return nil
}

func (e *Engine) submitEntry(ctx context.Context, bar types.Bar, st *symbolState, decision strategy.Decision) error {
	stop := decision.Stop.TakeOr(0)
	account := e.deps.Account()

	quantity := e.deps.Sizer.Quantity(account.PortfolioValue, account.Cash, bar.Close, stop)
	if quantity <= 0 {
		e.deps.Logger.Debug("entry skipped, sizer returned zero quantity", zap.String("symbol", bar.Symbol))

		return nil
	}

	intent := types.OrderIntent{
		ID:           uuid.New().String(),
		Symbol:       bar.Symbol,
		Side:         types.SideBuy,
		OrderType:    types.OrderTypeLimit,
		Quantity:     quantity,
		LimitPrice:   optional.Some(bar.Close),
		TimeInForce:  types.TimeInForceDay,
		Reason:       decision.Reason,
		StrategyName: e.deps.Evaluator.Name(),
		SubmittedAt:  bar.Time,
	}

	orderID, err := e.deps.Executor.SubmitOrder(ctx, intent)
	if err != nil {
		e.deps.Logger.Error("entry submission failed", zap.String("symbol", bar.Symbol), zap.Error(err))

		return nil
	}

	st.state = StatePendingEntry
	st.orderID = orderID
	st.submittedAt = bar.Time
	st.pendingStop = stop
	st.pendingTarget = decision.Target.TakeOr(0)
	st.pendingReason = decision.Reason

	e.deps.Metrics.OrderSubmitted(string(types.SideBuy))
	e.recordOrder(intent, orderID, bar.Close)
	e.deps.Logger.Info("entry submitted",
		zap.String("symbol", bar.Symbol),
		zap.Float64("quantity", quantity),
		zap.Float64("limit", bar.Close),
		zap.Float64("stop", stop),
		zap.Float64("target", st.pendingTarget),
		zap.String("reason", decision.Reason.Message),
	)

	return nil
}

func (e *Engine) submitExit(ctx context.Context, bar types.Bar, st *symbolState, position types.Position, reason types.Reason, closeout bool) error {
	orderType := types.OrderTypeLimit
	limit := optional.Some(bar.Close)

	// Forced liquidation must fill; it goes out at market.
	if closeout {
		orderType = types.OrderTypeMarket
		limit = optional.None[float64]()
	}

	intent := types.OrderIntent{
		ID:           uuid.New().String(),
		Symbol:       bar.Symbol,
		Side:         types.SideSell,
		OrderType:    orderType,
		Quantity:     position.Quantity,
		LimitPrice:   limit,
		TimeInForce:  types.TimeInForceDay,
		Reason:       reason,
		StrategyName: e.deps.Evaluator.Name(),
		SubmittedAt:  bar.Time,
	}

	orderID, err := e.deps.Executor.SubmitOrder(ctx, intent)
	if err != nil {
		e.deps.Logger.Error("exit submission failed", zap.String("symbol", bar.Symbol), zap.Error(err))

		return nil
	}

	st.state = StatePendingExit
	st.orderID = orderID
	st.submittedAt = bar.Time
	st.pendingReason = reason
	st.closeout = closeout

	e.deps.Metrics.OrderSubmitted(string(types.SideSell))
	e.recordOrder(intent, orderID, bar.Close)
	e.deps.Logger.Info("exit submitted",
		zap.String("symbol", bar.Symbol),
		zap.Float64("quantity", position.Quantity),
		zap.String("reason", reason.Reason),
		zap.String("detail", reason.Message),
	)

	return nil
}

func (e *Engine) applyFill(ctx context.Context, update broker.OrderUpdate, st *symbolState) error {
	symbol := update.Symbol

	switch update.Side {
	case types.SideBuy:
		if e.deps.Ledger.Position(symbol).IsNone() {
			if err := e.deps.Ledger.Open(symbol, update.FilledQty, update.FillPrice, st.pendingStop, st.pendingTarget, update.Timestamp, e.deps.Evaluator.Name()); err != nil {
				return err
			}
		} else if _, err := e.deps.Ledger.ApplyFill(symbol, types.SideBuy, update.FilledQty, update.FillPrice, update.Timestamp, st.pendingReason); err != nil {
			return err
		}

		if update.Status == types.OrderStatusFilled {
			st.state = StateOpen
		}

		e.deps.Metrics.OrderFilled(string(types.SideBuy))
		e.deps.Notifier.Notify(ctx, notifyFillMessage(update))
	case types.SideSell:
		record, err := e.deps.Ledger.ApplyFill(symbol, types.SideSell, update.FilledQty, update.FillPrice, update.Timestamp, st.pendingReason)
		if err != nil {
			return err
		}

		if record.IsSome() {
			rec := record.Unwrap()
			if err := e.deps.Recorder.RecordTrade(rec); err != nil {
				e.deps.Logger.Error("failed to record trade", zap.String("symbol", symbol), zap.Error(err))
			}

			e.deps.Logger.Info("position closed",
				zap.String("symbol", symbol),
				zap.Float64("entry", rec.EntryPrice),
				zap.Float64("exit", rec.ExitPrice),
				zap.Float64("pnl", rec.PnL()),
				zap.String("reason", rec.Reason.Reason),
			)
		}

		if update.Status == types.OrderStatusFilled {
			st.state = StateFlat
			if st.closeout {
				st.deregistered = true
				st.closeout = false
			}
		}

		e.deps.Metrics.OrderFilled(string(types.SideSell))
		e.deps.Notifier.Notify(ctx, notifyFillMessage(update))
	}

	e.deps.Metrics.SetOpenPositions(len(e.deps.Ledger.OpenPositions()))

	return nil
}

// revertPending resets the state machine to match the ledger after a
// rejection, cancellation or stale-order cancel. Partial fills already
// applied stay in the ledger.
func (e *Engine) revertPending(symbol string, st *symbolState) {
	if e.deps.Ledger.Position(symbol).IsSome() {
		st.state = StateOpen
	} else {
		st.state = StateFlat
	}

	st.orderID = ""
	st.closeout = false
}

func (e *Engine) recordOrder(intent types.OrderIntent, orderID string, price float64) {
	order := types.Order{
		OrderID:      orderID,
		Symbol:       intent.Symbol,
		Side:         intent.Side,
		OrderType:    intent.OrderType,
		Quantity:     intent.Quantity,
		Price:        price,
		Timestamp:    intent.SubmittedAt,
		Status:       types.OrderStatusPending,
		Reason:       intent.Reason,
		StrategyName: intent.StrategyName,
	}

	if err := e.deps.Recorder.RecordOrder(order); err != nil {
		e.deps.Logger.Error("failed to record order", zap.String("symbol", intent.Symbol), zap.Error(err))
	}
}

func notifyFillMessage(update broker.OrderUpdate) string {
	return fmt.Sprintf("%s %s: %.0f @ %.2f", update.Side, update.Symbol, update.FilledQty, update.FillPrice)
}
