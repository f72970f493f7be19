package backtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

type RecordStoreTestSuite struct {
	suite.Suite
	store *RecordStore
	now   time.Time
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreTestSuite))
}

func (suite *RecordStoreTestSuite) SetupTest() {
	store, err := NewRecordStore(nil)
	suite.Require().NoError(err)
	suite.store = store
	suite.now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
}

func (suite *RecordStoreTestSuite) TearDownTest() {
	suite.store.Close()
}

func (suite *RecordStoreTestSuite) order(id string) types.Order {
	return types.Order{
		OrderID:      id,
		Symbol:       "AAPL",
		Side:         types.SideBuy,
		OrderType:    types.OrderTypeLimit,
		Quantity:     100,
		Price:        20.0,
		Timestamp:    suite.now,
		Status:       types.OrderStatusPending,
		Reason:       types.Reason{Reason: types.OrderReasonEntrySignal, Message: "test entry"},
		StrategyName: "momentum",
	}
}

func (suite *RecordStoreTestSuite) trade(symbol string, closedAt time.Time) types.TradeRecord {
	return types.TradeRecord{
		Symbol:       symbol,
		Quantity:     100,
		EntryPrice:   20.0,
		ExitPrice:    21.0,
		OpenedAt:     suite.now,
		ClosedAt:     closedAt,
		Reason:       types.Reason{Reason: types.OrderReasonTakeProfit, Message: "target"},
		StrategyName: "momentum",
	}
}

func (suite *RecordStoreTestSuite) TestRecordAndCountOrders() {
	suite.Require().NoError(suite.store.RecordOrder(suite.order("order-1")))
	suite.Require().NoError(suite.store.RecordOrder(suite.order("order-2")))

	count, err := suite.store.CountOrders("AAPL")
	suite.Require().NoError(err)
	suite.Equal(2, count)

	count, err = suite.store.CountOrders("TSLA")
	suite.Require().NoError(err)
	suite.Equal(0, count)
}

func (suite *RecordStoreTestSuite) TestGetAllTradesOrderedByCloseTime() {
	later := suite.trade("AAPL", suite.now.Add(time.Hour))
	earlier := suite.trade("TSLA", suite.now.Add(time.Minute))

	suite.Require().NoError(suite.store.RecordTrade(later))
	suite.Require().NoError(suite.store.RecordTrade(earlier))

	trades, err := suite.store.GetAllTrades()
	suite.Require().NoError(err)

	suite.Require().Len(trades, 2)
	suite.Equal("TSLA", trades[0].Symbol)
	suite.Equal("AAPL", trades[1].Symbol)
	suite.Equal(types.OrderReasonTakeProfit, trades[0].Reason.Reason)
	suite.InDelta(21.0, trades[0].ExitPrice, 1e-9)
}

func (suite *RecordStoreTestSuite) TestWriteExportsParquet() {
	suite.Require().NoError(suite.store.RecordOrder(suite.order("order-1")))
	suite.Require().NoError(suite.store.RecordTrade(suite.trade("AAPL", suite.now.Add(time.Hour))))

	dir := suite.T().TempDir()
	suite.Require().NoError(suite.store.Write(dir))

	for _, name := range []string{"orders.parquet", "trades.parquet"} {
		info, err := os.Stat(filepath.Join(dir, name))
		suite.Require().NoError(err)
		suite.Positive(info.Size())
	}
}

func (suite *RecordStoreTestSuite) TestCleanup() {
	suite.Require().NoError(suite.store.RecordOrder(suite.order("order-1")))
	suite.Require().NoError(suite.store.RecordTrade(suite.trade("AAPL", suite.now)))

	suite.Require().NoError(suite.store.Cleanup())

	count, err := suite.store.CountOrders("AAPL")
	suite.Require().NoError(err)
	suite.Equal(0, count)

	trades, err := suite.store.GetAllTrades()
	suite.Require().NoError(err)
	suite.Empty(trades)
}
