package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
	metrics  *Metrics
	registry *prometheus.Registry
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) SetupTest() {
	suite.metrics = New()
	suite.registry = prometheus.NewRegistry()
	suite.Require().NoError(suite.metrics.Register(suite.registry))
}

func (suite *MetricsTestSuite) TestCountersBySide() {
	suite.metrics.OrderSubmitted("BUY")
	suite.metrics.OrderSubmitted("BUY")
	suite.metrics.OrderSubmitted("SELL")
	suite.metrics.OrderFilled("BUY")
	suite.metrics.OrderRejected("SELL")

	suite.InDelta(2.0, testutil.ToFloat64(suite.metrics.ordersSubmitted.WithLabelValues("BUY")), 1e-9)
	suite.InDelta(1.0, testutil.ToFloat64(suite.metrics.ordersSubmitted.WithLabelValues("SELL")), 1e-9)
	suite.InDelta(1.0, testutil.ToFloat64(suite.metrics.ordersFilled.WithLabelValues("BUY")), 1e-9)
	suite.InDelta(1.0, testutil.ToFloat64(suite.metrics.ordersRejected.WithLabelValues("SELL")), 1e-9)
}

func (suite *MetricsTestSuite) TestStaleCancelsAndOpenPositions() {
	suite.metrics.StaleOrderCancelled()
	suite.metrics.StaleOrderCancelled()
	suite.metrics.SetOpenPositions(3)

	suite.InDelta(2.0, testutil.ToFloat64(suite.metrics.staleCancels), 1e-9)
	suite.InDelta(3.0, testutil.ToFloat64(suite.metrics.openPositions), 1e-9)

	suite.metrics.SetOpenPositions(0)
	suite.InDelta(0.0, testutil.ToFloat64(suite.metrics.openPositions), 1e-9)
}

func (suite *MetricsTestSuite) TestDoubleRegistrationFails() {
	suite.Error(suite.metrics.Register(suite.registry))
}
