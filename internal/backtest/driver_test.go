package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

type DriverTestSuite struct {
	suite.Suite
	ctx      context.Context
	dataPath string
	cfg      Config
}

func TestDriverSuite(t *testing.T) {
	suite.Run(t, new(DriverTestSuite))
}

func (suite *DriverTestSuite) SetupTest() {
	suite.ctx = context.Background()

	dir := suite.T().TempDir()
	suite.dataPath = filepath.Join(dir, "bars.csv")
	suite.writeFixture(suite.dataPath)

	cfg := DefaultConfig()
	cfg.InitialCash = 10000
	cfg.Symbols = []string{"AAPL", "MISSING"}
	cfg.DataPath = suite.dataPath
	cfg.ResultsPath = filepath.Join(dir, "results")
	cfg.Strategy = "momentum"
	cfg.Timezone = "UTC"
	suite.cfg = cfg
}

// writeFixture produces two quiet trading days of flat prices: enough to
// replay end to end without triggering any entries.
func (suite *DriverTestSuite) writeFixture(path string) {
	var sb strings.Builder

	sb.WriteString("time,symbol,open,high,low,close,volume\n")

	for day := 4; day <= 5; day++ {
		for minute := 0; minute < 30; minute++ {
			at := time.Date(2024, 3, day, 9, 31, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
			fmt.Fprintf(&sb, "%s,AAPL,20.00,20.05,19.95,20.00,100\n", at.Format("2006-01-02 15:04:05"))
		}
	}

	suite.Require().NoError(os.WriteFile(path, []byte(sb.String()), 0o644))
}

func (suite *DriverTestSuite) run(cfg Config) []types.SymbolResult {
	driver, err := NewDriver(cfg, nil)
	suite.Require().NoError(err)
	defer driver.Store().Close()

	results, err := driver.Run(suite.ctx)
	suite.Require().NoError(err)

	return results
}

func (suite *DriverTestSuite) TestRunEndToEnd() {
	results := suite.run(suite.cfg)

	suite.Require().Len(results, 2)

	aapl := results[0]
	suite.Equal("AAPL", aapl.Symbol)
	suite.False(aapl.Excluded)
	suite.Equal(2, aapl.Summary.Days)
	suite.InDelta(0.0, aapl.Summary.Total, 1e-9)
	suite.InDelta(10000.0, aapl.EndingCash, 1e-9)

	missing := results[1]
	suite.Equal("MISSING", missing.Symbol)
	suite.True(missing.Excluded)
	suite.Contains(missing.ExcludedReason, "no bars")

	_, err := os.Stat(filepath.Join(suite.cfg.ResultsPath, "results.yaml"))
	suite.NoError(err)
}

func (suite *DriverTestSuite) TestRunIsDeterministic() {
	first := suite.run(suite.cfg)
	second := suite.run(suite.cfg)

	suite.Equal(first, second)
}

func (suite *DriverTestSuite) TestBoundedWindowSeedsPreviousClose() {
	cfg := suite.cfg
	cfg.Symbols = []string{"AAPL"}
	cfg.StartTime = optional.Some(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	results := suite.run(cfg)

	suite.Require().Len(results, 1)
	suite.False(results[0].Excluded)
	// Only day two replays, with day one's close available as the previous
	// session close from the bars before the window.
	suite.Equal(1, results[0].Summary.Days)
	suite.InDelta(10000.0, results[0].EndingCash, 1e-9)
}

func (suite *DriverTestSuite) TestSymbolsReplayedInSortedOrder() {
	cfg := suite.cfg
	cfg.Symbols = []string{"MISSING", "AAPL"}

	results := suite.run(cfg)

	suite.Require().Len(results, 2)
	suite.Equal("AAPL", results[0].Symbol)
	suite.Equal("MISSING", results[1].Symbol)
}

func (suite *DriverTestSuite) TestNewDriverRejectsInvalidConfig() {
	cfg := suite.cfg
	cfg.Strategy = "martingale"

	_, err := NewDriver(cfg, nil)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeBacktestConfigError, errors.GetCode(err))
}

func (suite *DriverTestSuite) TestNewEvaluator() {
	momentum, err := NewEvaluator("momentum", "")
	suite.Require().NoError(err)
	suite.Equal("momentum", momentum.Name())

	obv, err := NewEvaluator("obv", "ema_span: 10")
	suite.Require().NoError(err)
	suite.Equal("obv", obv.Name())

	_, err = NewEvaluator("martingale", "")
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeBacktestConfigError, errors.GetCode(err))

	_, err = NewEvaluator("momentum", "reward_multiple: [broken")
	suite.Error(err)
}
