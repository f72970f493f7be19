package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

type StatusServerTestSuite struct {
	suite.Suite
	trader *Trader
	server *StatusServer
}

func TestStatusServerSuite(t *testing.T) {
	suite.Run(t, new(StatusServerTestSuite))
}

func (suite *StatusServerTestSuite) SetupTest() {
	brk := newFakeBroker()

	cfg := DefaultConfig()
	cfg.Symbols = []string{"BTCUSDT"}
	cfg.Strategy = "obv"

	trader, err := NewTrader(cfg, Deps{
		Executor: brk,
		Feed:     brk,
		Account:  brk,
		Updates:  brk,
		Prices:   brk,
	})
	suite.Require().NoError(err)
	suite.trader = trader

	server, err := NewStatusServer("127.0.0.1:0", trader, nil)
	suite.Require().NoError(err)
	suite.server = server
}

func (suite *StatusServerTestSuite) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	suite.server.server.Handler.ServeHTTP(rec, req)

	return rec
}

func (suite *StatusServerTestSuite) TestHealth() {
	rec := suite.get("/health")

	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("ok", rec.Body.String())
}

func (suite *StatusServerTestSuite) TestPositions() {
	suite.Require().NoError(suite.trader.Ledger().Open("BTCUSDT", 2, 40000, 38000, 46000, time.Now().UTC(), "obv"))

	rec := suite.get("/positions")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("application/json", rec.Header().Get("Content-Type"))

	var positions []types.Position
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &positions))
	suite.Require().Len(positions, 1)
	suite.Equal("BTCUSDT", positions[0].Symbol)
	suite.Equal(2.0, positions[0].Quantity)
}

func (suite *StatusServerTestSuite) TestMetricsEndpoint() {
	suite.trader.Metrics().OrderSubmitted("BUY")

	rec := suite.get("/metrics")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), "trading_orders_submitted_total")
}

func (suite *StatusServerTestSuite) TestPostRejected() {
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	suite.server.server.Handler.ServeHTTP(rec, req)

	suite.Equal(http.StatusMethodNotAllowed, rec.Code)
}
