package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type VWAPTestSuite struct {
	suite.Suite
}

func TestVWAPSuite(t *testing.T) {
	suite.Run(t, new(VWAPTestSuite))
}

func (suite *VWAPTestSuite) TestCumulative() {
	bars := obvBars([]float64{10, 20}, []float64{100, 100})

	vwap := VWAP(bars)

	suite.Require().Len(vwap, 2)
	suite.InDelta(10.0, vwap[0].Unwrap(), 1e-9)
	suite.InDelta(15.0, vwap[1].Unwrap(), 1e-9)
}

func (suite *VWAPTestSuite) TestVolumeWeighting() {
	bars := obvBars([]float64{10, 20}, []float64{100, 300})

	vwap := VWAP(bars)

	suite.Require().Len(vwap, 2)
	suite.InDelta((10.0*100+20.0*300)/400.0, vwap[1].Unwrap(), 1e-9)
}

func (suite *VWAPTestSuite) TestUndefinedWithoutVolume() {
	bars := obvBars([]float64{10}, []float64{0})

	vwap := VWAP(bars)

	suite.Require().Len(vwap, 1)
	suite.True(vwap[0].IsNone())
}

func (suite *VWAPTestSuite) TestDefinedOnceVolumeTrades() {
	bars := obvBars([]float64{10, 20}, []float64{0, 100})

	vwap := VWAP(bars)

	suite.Require().Len(vwap, 2)
	suite.True(vwap[0].IsNone())
	suite.InDelta(20.0, vwap[1].Unwrap(), 1e-9)
}

func (suite *VWAPTestSuite) TestEmpty() {
	suite.Empty(VWAP(nil))
}
