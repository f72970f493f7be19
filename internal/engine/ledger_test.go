package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

type LedgerTestSuite struct {
	suite.Suite
	ledger *Ledger
	now    time.Time
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (suite *LedgerTestSuite) SetupTest() {
	suite.ledger = NewLedger()
	suite.now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
}

func (suite *LedgerTestSuite) TestOpenSeedsPosition() {
	err := suite.ledger.Open("AAPL", 100, 20.0, 19.0, 23.0, suite.now, "momentum")
	suite.Require().NoError(err)

	pos := suite.ledger.Position("AAPL")
	suite.Require().True(pos.IsSome())

	p := pos.Unwrap()
	suite.Equal(100.0, p.Quantity)
	suite.Equal(19.0, p.StopLoss)
	suite.Equal(23.0, p.Target)
	suite.Equal(20.0, p.Reference)
	suite.Equal("momentum", p.StrategyName)
	suite.InDelta(20.0, p.AverageEntryPrice(), 1e-9)
}

func (suite *LedgerTestSuite) TestOpenTwiceFails() {
	suite.Require().NoError(suite.ledger.Open("AAPL", 100, 20.0, 19.0, 23.0, suite.now, "momentum"))

	err := suite.ledger.Open("AAPL", 50, 21.0, 20.0, 24.0, suite.now, "momentum")
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodePositionAlreadyOpen, errors.GetCode(err))
}

func (suite *LedgerTestSuite) TestOpenRejectsNonPositiveQuantity() {
	err := suite.ledger.Open("AAPL", 0, 20.0, 19.0, 23.0, suite.now, "momentum")
	suite.Error(err)
}

func (suite *LedgerTestSuite) TestPartialFillRoundTrip() {
	suite.Require().NoError(suite.ledger.Open("AAPL", 6, 20.0, 19.0, 23.0, suite.now, "momentum"))

	// Second buy lot at a worse price blends the entry average to 20.4.
	record, err := suite.ledger.ApplyFill("AAPL", types.SideBuy, 4, 21.0, suite.now, types.Reason{})
	suite.Require().NoError(err)
	suite.True(record.IsNone())

	pos := suite.ledger.Position("AAPL").Unwrap()
	suite.Equal(10.0, pos.Quantity)
	suite.InDelta(20.4, pos.AverageEntryPrice(), 1e-9)

	reason := types.Reason{Reason: types.OrderReasonTakeProfit, Message: "target"}

	record, err = suite.ledger.ApplyFill("AAPL", types.SideSell, 4, 22.0, suite.now, reason)
	suite.Require().NoError(err)
	suite.True(record.IsNone())

	record, err = suite.ledger.ApplyFill("AAPL", types.SideSell, 6, 23.0, suite.now.Add(time.Minute), reason)
	suite.Require().NoError(err)
	suite.Require().True(record.IsSome())

	trade := record.Unwrap()
	suite.Equal("AAPL", trade.Symbol)
	suite.Equal(10.0, trade.Quantity)
	suite.InDelta(20.4, trade.EntryPrice, 1e-9)
	suite.InDelta(22.6, trade.ExitPrice, 1e-9)
	suite.Equal(reason, trade.Reason)
	suite.Equal("momentum", trade.StrategyName)

	suite.True(suite.ledger.Position("AAPL").IsNone())
}

func (suite *LedgerTestSuite) TestFractionalFillsCloseExactly() {
	suite.Require().NoError(suite.ledger.Open("BTCUSDT", 0.3, 40000.0, 38000.0, 46000.0, suite.now, "obv"))

	reason := types.Reason{Reason: types.OrderReasonExitSignal}

	record, err := suite.ledger.ApplyFill("BTCUSDT", types.SideSell, 0.1, 41000.0, suite.now, reason)
	suite.Require().NoError(err)
	suite.True(record.IsNone())
	suite.Equal(0.2, suite.ledger.Position("BTCUSDT").Unwrap().Quantity)

	// The remaining 0.2 must be sellable in full, not rejected as an
	// overfill by accumulated float error.
	record, err = suite.ledger.ApplyFill("BTCUSDT", types.SideSell, 0.2, 42000.0, suite.now.Add(time.Minute), reason)
	suite.Require().NoError(err)
	suite.Require().True(record.IsSome())

	trade := record.Unwrap()
	suite.Equal(0.3, trade.Quantity)
	suite.InDelta(12500.0/0.3, trade.ExitPrice, 1e-9)
	suite.True(suite.ledger.Position("BTCUSDT").IsNone())
}

func (suite *LedgerTestSuite) TestOverfillRejected() {
	suite.Require().NoError(suite.ledger.Open("AAPL", 10, 20.0, 19.0, 23.0, suite.now, "momentum"))

	_, err := suite.ledger.ApplyFill("AAPL", types.SideSell, 11, 21.0, suite.now, types.Reason{})
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeOverfill, errors.GetCode(err))

	// The failed fill leaves the position untouched.
	suite.Equal(10.0, suite.ledger.Position("AAPL").Unwrap().Quantity)
}

func (suite *LedgerTestSuite) TestFillWithoutPositionFails() {
	_, err := suite.ledger.ApplyFill("AAPL", types.SideSell, 1, 21.0, suite.now, types.Reason{})
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodePositionNotOpen, errors.GetCode(err))
}

func (suite *LedgerTestSuite) TestRaiseStopMonotonic() {
	suite.Require().NoError(suite.ledger.Open("AAPL", 100, 20.0, 19.0, 23.0, suite.now, "momentum"))

	suite.ledger.RaiseStop("AAPL", 19.5, 20.5)

	pos := suite.ledger.Position("AAPL").Unwrap()
	suite.Equal(19.5, pos.StopLoss)
	suite.Equal(20.5, pos.Reference)

	// Proposals at or below the current stop are dropped.
	suite.ledger.RaiseStop("AAPL", 19.5, 21.0)
	suite.ledger.RaiseStop("AAPL", 18.0, 22.0)

	pos = suite.ledger.Position("AAPL").Unwrap()
	suite.Equal(19.5, pos.StopLoss)
	suite.Equal(20.5, pos.Reference)
}

func (suite *LedgerTestSuite) TestRaiseStopUnknownSymbolIsNoop() {
	suite.ledger.RaiseStop("AAPL", 19.5, 20.5)
	suite.True(suite.ledger.Position("AAPL").IsNone())
}

func (suite *LedgerTestSuite) TestAdopt() {
	pos := types.Position{
		Symbol:          "BTCUSDT",
		Quantity:        2,
		TotalInQuantity: 2,
		TotalInAmount:   80000,
		StopLoss:        38000,
		Reference:       40000,
		OpenedAt:        suite.now,
		StrategyName:    "momentum",
	}

	suite.Require().NoError(suite.ledger.Adopt(pos))

	got := suite.ledger.Position("BTCUSDT")
	suite.Require().True(got.IsSome())
	suite.Equal(pos, got.Unwrap())

	err := suite.ledger.Adopt(pos)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodePositionAlreadyOpen, errors.GetCode(err))
}

func (suite *LedgerTestSuite) TestTakeRecordsDrains() {
	suite.Require().NoError(suite.ledger.Open("AAPL", 10, 20.0, 19.0, 23.0, suite.now, "momentum"))

	_, err := suite.ledger.ApplyFill("AAPL", types.SideSell, 10, 21.0, suite.now, types.Reason{Reason: types.OrderReasonExitSignal})
	suite.Require().NoError(err)

	records := suite.ledger.TakeRecords()
	suite.Len(records, 1)

	suite.Empty(suite.ledger.TakeRecords())
}

func (suite *LedgerTestSuite) TestOpenPositionsSnapshot() {
	suite.Require().NoError(suite.ledger.Open("AAPL", 10, 20.0, 19.0, 23.0, suite.now, "momentum"))
	suite.Require().NoError(suite.ledger.Open("TSLA", 5, 200.0, 190.0, 230.0, suite.now, "momentum"))

	suite.Len(suite.ledger.OpenPositions(), 2)
}
