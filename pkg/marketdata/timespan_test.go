package marketdata

import (
	"testing"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"
)

type TimespanTestSuite struct {
	suite.Suite
}

func TestTimespanSuite(t *testing.T) {
	suite.Run(t, new(TimespanTestSuite))
}

func (suite *TimespanTestSuite) TestMultiplier() {
	suite.Equal(1, TimespanOneMinute.Multiplier())
	suite.Equal(5, TimespanFiveMinutes.Multiplier())
	suite.Equal(15, TimespanFifteenMinutes.Multiplier())
	suite.Equal(30, TimespanThirtyMinutes.Multiplier())
	suite.Equal(1, TimespanOneHour.Multiplier())
	suite.Equal(4, TimespanFourHours.Multiplier())
	suite.Equal(1, TimespanOneDay.Multiplier())
}

func (suite *TimespanTestSuite) TestToPolygonTimespan() {
	tests := []struct {
		timespan Timespan
		want     models.Timespan
	}{
		{TimespanOneMinute, models.Minute},
		{TimespanThirtyMinutes, models.Minute},
		{TimespanOneHour, models.Hour},
		{TimespanFourHours, models.Hour},
		{TimespanOneDay, models.Day},
		{TimespanOneWeek, models.Week},
	}

	for _, tc := range tests {
		got, err := tc.timespan.ToPolygonTimespan()
		suite.Require().NoError(err)
		suite.Equal(tc.want, got)
	}

	_, err := Timespan("7x").ToPolygonTimespan()
	suite.Error(err)
}
