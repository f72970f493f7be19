package marketdata

import (
	"context"
	"sort"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// ScreenConfig filters the previous session's grouped daily bars down to
// candidate tickers for intraday momentum trading.
type ScreenConfig struct {
	// MinPrice and MaxPrice bound the closing price. Low-priced movers have
	// the volatility the momentum entry needs; expensive names move too few
	// percent intraday.
	MinPrice float64 `yaml:"min_price"`
	MaxPrice float64 `yaml:"max_price"`
	// MinDollarVolume is the minimum close * volume of the session.
	MinDollarVolume float64 `yaml:"min_dollar_volume"`
	// MinRangeChange is the minimum (high-low)/low of the session.
	MinRangeChange float64 `yaml:"min_range_change"`
}

// DefaultScreenConfig returns the screening thresholds.
func DefaultScreenConfig() ScreenConfig {
	return ScreenConfig{
		MinPrice:        2.0,
		MaxPrice:        13.0,
		MinDollarVolume: 500000,
		MinRangeChange:  0.035,
	}
}

// Screener selects candidate tickers from Polygon grouped daily aggregates.
type Screener struct {
	client *polygon.Client
	cfg    ScreenConfig
}

// NewScreener creates a screener with the given API key and thresholds.
func NewScreener(apiKey string, cfg ScreenConfig) (*Screener, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}

	return &Screener{client: polygon.New(apiKey), cfg: cfg}, nil
}

// Screen returns the tickers whose daily bar on the given date passes all
// thresholds, sorted alphabetically.
func (s *Screener) Screen(ctx context.Context, date time.Time) ([]string, error) {
	params := &models.GetGroupedDailyAggsParams{
		Locale:     models.US,
		MarketType: models.Stocks,
		Date:       models.Date(date),
	}

	resp, err := s.client.GetGroupedDailyAggs(ctx, params)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to fetch grouped daily aggregates", err)
	}

	var tickers []string

	for _, agg := range resp.Results {
		if !s.passes(agg) {
			continue
		}

		tickers = append(tickers, agg.Ticker)
	}

	sort.Strings(tickers)

	return tickers, nil
}

func (s *Screener) passes(agg models.Agg) bool {
	if agg.Close < s.cfg.MinPrice || agg.Close > s.cfg.MaxPrice {
		return false
	}

	if agg.Close*agg.Volume < s.cfg.MinDollarVolume {
		return false
	}

	if agg.Low <= 0 || (agg.High-agg.Low)/agg.Low < s.cfg.MinRangeChange {
		return false
	}

	return true
}
