package engine

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/derekmborges/algorithmic-trading/internal/broker"
	"github.com/derekmborges/algorithmic-trading/internal/strategy"
	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// scriptedEvaluator pops one pre-programmed decision per Evaluate call and
// falls back to no action once the script runs out.
type scriptedEvaluator struct {
	decisions []strategy.Decision
}

func (s *scriptedEvaluator) Name() string { return "scripted" }

func (s *scriptedEvaluator) Evaluate(_ strategy.Context, _ types.Bar, _ optional.Option[types.Position]) (strategy.Decision, error) {
	if len(s.decisions) == 0 {
		return strategy.NoAction(), nil
	}

	d := s.decisions[0]
	s.decisions = s.decisions[1:]

	return d, nil
}

type nopHistory struct{}

func (nopHistory) Bars(string, int) []types.Bar            { return nil }
func (nopHistory) SessionBars(string) []types.Bar          { return nil }
func (nopHistory) SessionVolume(string) float64            { return 0 }
func (nopHistory) PrevDayClose(string) optional.Option[float64] {
	return optional.None[float64]()
}

type captureRecorder struct {
	orders []types.Order
	trades []types.TradeRecord
}

func (c *captureRecorder) RecordOrder(order types.Order) error {
	c.orders = append(c.orders, order)

	return nil
}

func (c *captureRecorder) RecordTrade(trade types.TradeRecord) error {
	c.trades = append(c.trades, trade)

	return nil
}

type EngineTestSuite struct {
	suite.Suite
	ctx       context.Context
	session   types.SessionWindow
	evaluator *scriptedEvaluator
	executor  *broker.SimulatedExecutor
	ledger    *Ledger
	recorder  *captureRecorder
	engine    *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	suite.ctx = context.Background()

	open := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	session, err := types.NewSessionWindow(open, open.Add(390*time.Minute))
	suite.Require().NoError(err)
	suite.session = session

	suite.evaluator = &scriptedEvaluator{}
	suite.executor = broker.NewSimulatedExecutor()
	suite.ledger = NewLedger()
	suite.recorder = &captureRecorder{}

	engine, err := NewEngine(DefaultConfig(), session, []string{"AAPL"}, Deps{
		Evaluator: suite.evaluator,
		Executor:  suite.executor,
		Ledger:    suite.ledger,
		Sizer:     CashSizer{},
		History:   nopHistory{},
		Account:   func() broker.AccountState { return broker.AccountState{Cash: 2000, PortfolioValue: 2000} },
		Recorder:  suite.recorder,
	})
	suite.Require().NoError(err)
	suite.engine = engine
}

func (suite *EngineTestSuite) bar(minutesAfterOpen int, close float64) types.Bar {
	return types.Bar{
		Symbol: "AAPL",
		Time:   suite.session.MarketOpen.Add(time.Duration(minutesAfterOpen) * time.Minute),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1000,
	}
}

// step feeds one bar and pumps the resulting fills back into the engine, the
// same pattern the backtest driver uses.
func (suite *EngineTestSuite) step(bar types.Bar) {
	suite.executor.ObserveBar(bar)
	suite.Require().NoError(suite.engine.OnBar(suite.ctx, bar))

	for _, update := range suite.executor.Drain() {
		suite.Require().NoError(suite.engine.OnOrderUpdate(suite.ctx, update))
	}
}

func (suite *EngineTestSuite) enterDecision(stop, target float64) strategy.Decision {
	d := strategy.NoAction()
	d.Action = types.ActionEnter
	d.Stop = optional.Some(stop)
	d.Target = optional.Some(target)
	d.Reason = types.Reason{Reason: types.OrderReasonEntrySignal, Message: "scripted entry"}

	return d
}

func (suite *EngineTestSuite) exitDecision() strategy.Decision {
	d := strategy.NoAction()
	d.Action = types.ActionExit
	d.Reason = types.Reason{Reason: types.OrderReasonExitSignal, Message: "scripted exit"}

	return d
}

func (suite *EngineTestSuite) TestEntryFillOpensPosition() {
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.0, 23.0)}

	suite.step(suite.bar(20, 20.0))

	pos := suite.ledger.Position("AAPL")
	suite.Require().True(pos.IsSome())

	p := pos.Unwrap()
	suite.Equal(100.0, p.Quantity)
	suite.Equal(19.0, p.StopLoss)
	suite.Equal(23.0, p.Target)
	suite.Equal("scripted", p.StrategyName)

	suite.Require().Len(suite.recorder.orders, 1)
	suite.Equal(types.SideBuy, suite.recorder.orders[0].Side)
	suite.Equal(types.OrderTypeLimit, suite.recorder.orders[0].OrderType)
}

func (suite *EngineTestSuite) TestExitFillClosesAndRecordsTrade() {
	suite.evaluator.decisions = []strategy.Decision{
		suite.enterDecision(19.0, 23.0),
		suite.exitDecision(),
	}

	suite.step(suite.bar(20, 20.0))
	suite.step(suite.bar(25, 21.0))

	suite.True(suite.ledger.Position("AAPL").IsNone())

	suite.Require().Len(suite.recorder.trades, 1)
	trade := suite.recorder.trades[0]
	suite.InDelta(20.0, trade.EntryPrice, 1e-9)
	suite.InDelta(21.0, trade.ExitPrice, 1e-9)
	suite.Equal(types.OrderReasonExitSignal, trade.Reason.Reason)

	// A new entry is possible after the round trip.
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(20.0, 24.0)}
	suite.step(suite.bar(30, 21.0))
	suite.True(suite.ledger.Position("AAPL").IsSome())
}

func (suite *EngineTestSuite) TestNoEntryWhileHoldingPosition() {
	suite.evaluator.decisions = []strategy.Decision{
		suite.enterDecision(19.0, 23.0),
		suite.enterDecision(19.0, 23.0),
	}

	suite.step(suite.bar(20, 20.0))
	suite.step(suite.bar(21, 20.5))

	// The second entry decision was ignored: one order, original quantity.
	suite.Len(suite.recorder.orders, 1)
	suite.Equal(100.0, suite.ledger.Position("AAPL").Unwrap().Quantity)
}

func (suite *EngineTestSuite) TestRejectionRevertsToFlat() {
	suite.executor.FailNextOrder("AAPL", "insufficient buying power")
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.0, 23.0)}

	suite.step(suite.bar(20, 20.0))

	suite.True(suite.ledger.Position("AAPL").IsNone())

	// Flat again: the next entry signal goes straight through.
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.0, 23.0)}
	suite.step(suite.bar(21, 20.0))
	suite.True(suite.ledger.Position("AAPL").IsSome())
}

func (suite *EngineTestSuite) TestStaleOrderCancelled() {
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.0, 23.0)}

	// Submit the entry but never deliver its update.
	suite.Require().NoError(suite.engine.OnBar(suite.ctx, suite.bar(20, 20.0)))
	suite.executor.Drain()

	// Two bar-minutes later the order is past the timeout; the engine cancels
	// it, reverts to flat and accepts a fresh entry on the same bar.
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.5, 23.0)}
	suite.step(suite.bar(22, 20.5))

	suite.True(suite.ledger.Position("AAPL").IsSome())
	suite.Len(suite.recorder.orders, 2)
}

func (suite *EngineTestSuite) TestTrailingStopRatchet() {
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.0, 23.0)}
	suite.step(suite.bar(20, 20.0))

	raise := strategy.NoAction()
	raise.Stop = optional.Some(20.16)
	suite.evaluator.decisions = []strategy.Decision{raise}
	suite.step(suite.bar(25, 21.0))

	pos := suite.ledger.Position("AAPL").Unwrap()
	suite.InDelta(20.16, pos.StopLoss, 1e-9)
	suite.InDelta(21.0, pos.Reference, 1e-9)
}

func (suite *EngineTestSuite) TestCloseoutLiquidatesAndDeregisters() {
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.0, 23.0)}
	suite.step(suite.bar(20, 20.0))
	suite.False(suite.engine.Done())

	// 376 minutes after open leaves 14 until close: inside the closeout
	// window, the position is sold at market regardless of signals.
	suite.step(suite.bar(376, 21.5))

	suite.True(suite.ledger.Position("AAPL").IsNone())
	suite.True(suite.engine.Done())

	suite.Require().Len(suite.recorder.trades, 1)
	suite.Equal(types.OrderReasonSessionClose, suite.recorder.trades[0].Reason.Reason)
	suite.InDelta(21.5, suite.recorder.trades[0].ExitPrice, 1e-9)
}

func (suite *EngineTestSuite) TestCloseoutDeregistersFlatSymbol() {
	suite.step(suite.bar(380, 20.0))

	suite.True(suite.engine.Done())

	// Bars after deregistration are ignored.
	suite.evaluator.decisions = []strategy.Decision{suite.enterDecision(19.0, 23.0)}
	suite.step(suite.bar(381, 20.0))
	suite.Empty(suite.recorder.orders)
}

func (suite *EngineTestSuite) TestUnregisteredSymbolIgnored() {
	bar := suite.bar(20, 20.0)
	bar.Symbol = "TSLA"

	suite.Require().NoError(suite.engine.OnBar(suite.ctx, bar))
	suite.Empty(suite.executor.Drain())
}

func (suite *EngineTestSuite) TestInvalidBarRejected() {
	bar := suite.bar(20, 20.0)
	bar.High = 19.0

	suite.Error(suite.engine.OnBar(suite.ctx, bar))
}

func (suite *EngineTestSuite) TestEngineAdoptsLedgerPosition() {
	ledger := NewLedger()
	suite.Require().NoError(ledger.Open("AAPL", 100, 20.0, 19.0, 23.0, suite.session.MarketOpen, "scripted"))

	evaluator := &scriptedEvaluator{decisions: []strategy.Decision{suite.exitDecision()}}
	executor := broker.NewSimulatedExecutor()

	engine, err := NewEngine(DefaultConfig(), suite.session, []string{"AAPL"}, Deps{
		Evaluator: evaluator,
		Executor:  executor,
		Ledger:    ledger,
		Sizer:     CashSizer{},
		History:   nopHistory{},
	})
	suite.Require().NoError(err)

	// The pre-existing position means the symbol starts open, so the exit
	// decision submits immediately.
	bar := suite.bar(20, 21.0)
	executor.ObserveBar(bar)
	suite.Require().NoError(engine.OnBar(suite.ctx, bar))

	for _, update := range executor.Drain() {
		suite.Require().NoError(engine.OnOrderUpdate(suite.ctx, update))
	}

	suite.True(ledger.Position("AAPL").IsNone())
}

func (suite *EngineTestSuite) TestNewEngineRequiresDeps() {
	_, err := NewEngine(DefaultConfig(), suite.session, []string{"AAPL"}, Deps{})
	suite.Error(err)
}
