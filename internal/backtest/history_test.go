package backtest

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

type ReplayHistoryTestSuite struct {
	suite.Suite
	hist *replayHistory
}

func TestReplayHistorySuite(t *testing.T) {
	suite.Run(t, new(ReplayHistoryTestSuite))
}

func (suite *ReplayHistoryTestSuite) SetupTest() {
	suite.hist = newReplayHistory("AAPL")
}

func (suite *ReplayHistoryTestSuite) bar(minute int, close, volume float64) types.Bar {
	return types.Bar{
		Symbol: "AAPL",
		Time:   time.Date(2024, 3, 4, 9, 30+minute, 0, 0, time.UTC),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: volume,
	}
}

func (suite *ReplayHistoryTestSuite) TestSessionBoundary() {
	suite.hist.StartSession(optional.None[float64]())
	suite.hist.Append(suite.bar(1, 20.0, 100))
	suite.hist.Append(suite.bar(2, 20.5, 200))

	// Next day: prior bars stay in lookback, session aggregates reset.
	suite.hist.StartSession(optional.Some(20.5))
	suite.hist.Append(suite.bar(3, 21.0, 300))

	suite.Len(suite.hist.Bars("AAPL", 10), 3)
	suite.Len(suite.hist.SessionBars("AAPL"), 1)
	suite.Equal(300.0, suite.hist.SessionVolume("AAPL"))

	prev := suite.hist.PrevDayClose("AAPL")
	suite.Require().True(prev.IsSome())
	suite.InDelta(20.5, prev.Unwrap(), 1e-9)
}

func (suite *ReplayHistoryTestSuite) TestBarsBounded() {
	suite.hist.StartSession(optional.None[float64]())
	for i := 1; i <= 5; i++ {
		suite.hist.Append(suite.bar(i, 20.0, 100))
	}

	bars := suite.hist.Bars("AAPL", 3)
	suite.Require().Len(bars, 3)
	suite.Equal(suite.bar(3, 20.0, 100).Time, bars[0].Time)

	suite.Len(suite.hist.Bars("AAPL", 100), 5)
	suite.Empty(suite.hist.Bars("AAPL", 0))
}

func (suite *ReplayHistoryTestSuite) TestUnknownSymbol() {
	suite.hist.StartSession(optional.Some(20.0))
	suite.hist.Append(suite.bar(1, 20.0, 100))

	suite.Empty(suite.hist.Bars("TSLA", 10))
	suite.Empty(suite.hist.SessionBars("TSLA"))
	suite.Equal(0.0, suite.hist.SessionVolume("TSLA"))
	suite.True(suite.hist.PrevDayClose("TSLA").IsNone())
}

func (suite *ReplayHistoryTestSuite) TestLastBarTime() {
	_, ok := suite.hist.LastBarTime()
	suite.False(ok)

	suite.hist.StartSession(optional.None[float64]())
	suite.hist.Append(suite.bar(1, 20.0, 100))
	suite.hist.Append(suite.bar(2, 20.0, 100))

	at, ok := suite.hist.LastBarTime()
	suite.True(ok)
	suite.Equal(suite.bar(2, 20.0, 100).Time, at)
}

func (suite *ReplayHistoryTestSuite) TestGroupByDay() {
	bars := []types.Bar{
		suite.bar(1, 20.0, 100),
		suite.bar(2, 20.1, 100),
		{Symbol: "AAPL", Time: time.Date(2024, 3, 5, 9, 31, 0, 0, time.UTC), Open: 21, High: 21, Low: 21, Close: 21, Volume: 100},
	}

	days := groupByDay(bars, time.UTC)

	suite.Require().Len(days, 2)
	suite.Len(days[0], 2)
	suite.Len(days[1], 1)
}
