package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type MACDTestSuite struct {
	suite.Suite
}

func TestMACDSuite(t *testing.T) {
	suite.Run(t, new(MACDTestSuite))
}

func (suite *MACDTestSuite) TestConfigValidate() {
	tests := []struct {
		name    string
		cfg     MACDConfig
		wantErr bool
	}{
		{"valid", MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}, false},
		{"fast not below slow", MACDConfig{FastPeriod: 26, SlowPeriod: 26, SignalPeriod: 9}, true},
		{"zero period", MACDConfig{FastPeriod: 0, SlowPeriod: 26, SignalPeriod: 9}, true},
		{"negative signal", MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: -1}, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			err := tc.cfg.Validate()
			if tc.wantErr {
				suite.Error(err)
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *MACDTestSuite) TestHistogramAvailability() {
	cfg := MACDConfig{FastPeriod: 2, SlowPeriod: 3, SignalPeriod: 2}
	closes := []float64{1, 2, 3, 4, 5, 6}

	line := MACDLine(closes, cfg)
	suite.True(line[1].IsNone())
	suite.True(line[2].IsSome())

	hist := MACDHistogram(closes, cfg)
	// Signal needs two defined line values: first histogram at index 3.
	suite.True(hist[2].IsNone())
	suite.True(hist[3].IsSome())

	suite.GreaterOrEqual(len(closes), cfg.MinBars())
	suite.True(Last(hist).IsSome())
}

func (suite *MACDTestSuite) TestHistogramFlatSeriesIsZero() {
	cfg := MACDConfig{FastPeriod: 2, SlowPeriod: 4, SignalPeriod: 3}
	closes := []float64{5, 5, 5, 5, 5, 5, 5, 5}

	hist := MACDHistogram(closes, cfg)

	last := Last(hist)
	suite.Require().True(last.IsSome())
	suite.InDelta(0.0, last.Unwrap(), 1e-9)
}

func (suite *MACDTestSuite) TestLinePositiveInUptrend() {
	cfg := MACDConfig{FastPeriod: 3, SlowPeriod: 6, SignalPeriod: 3}

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 10 + float64(i)
	}

	line := Last(MACDLine(closes, cfg))
	suite.Require().True(line.IsSome())
	suite.Positive(line.Unwrap())
}

func (suite *MACDTestSuite) TestHistogramTooFewBars() {
	cfg := MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
	closes := []float64{1, 2, 3}

	hist := MACDHistogram(closes, cfg)
	suite.True(Last(hist).IsNone())
}
