// Package marketdata downloads historical bars from external providers and
// stores them as Parquet files ready for backtesting.
package marketdata

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/derekmborges/algorithmic-trading/pkg/errors"
	"github.com/derekmborges/algorithmic-trading/pkg/marketdata/provider"
	"github.com/derekmborges/algorithmic-trading/pkg/marketdata/writer"
)

// ProviderType selects the market data provider.
type ProviderType string

const (
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	ProviderType  ProviderType `yaml:"provider" validate:"required,oneof=polygon binance"`
	DataPath      string       `yaml:"data_path" validate:"required"`
	PolygonAPIKey string       `yaml:"polygon_api_key" validate:"required_if=ProviderType polygon"`
}

// DownloadParams holds the parameters for one download request.
type DownloadParams struct {
	Ticker    string    `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtfield=StartDate"`
	Timespan  Timespan  `validate:"required"`
}

// Client downloads bars from the configured provider into Parquet files.
type Client struct {
	provider   provider.Provider
	config     ClientConfig
	validate   *validator.Validate
	onProgress provider.OnDownloadProgress
}

// NewClient creates a market data client. onProgress may be nil.
func NewClient(config ClientConfig, onProgress provider.OnDownloadProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid client configuration", err)
	}

	var marketProvider provider.Provider

	switch config.ProviderType {
	case ProviderPolygon:
		p, err := provider.NewPolygonProvider(config.PolygonAPIKey)
		if err != nil {
			return nil, err
		}

		marketProvider = p
	case ProviderBinance:
		marketProvider = provider.NewBinanceProvider()
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported provider type: %s", config.ProviderType)
	}

	return &Client{
		provider:   marketProvider,
		config:     config,
		validate:   validate,
		onProgress: onProgress,
	}, nil
}

// Download fetches bars per the params and returns the Parquet file path.
func (c *Client) Download(ctx context.Context, params DownloadParams) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	timespan, err := params.Timespan.ToPolygonTimespan()
	if err != nil {
		return "", err
	}

	w := writer.NewDuckDBWriter(c.config.DataPath)
	c.provider.ConfigWriter(w)

	path, err := c.provider.Download(ctx, params.Ticker, params.StartDate, params.EndDate, params.Timespan.Multiplier(), timespan, c.onProgress)
	if err != nil {
		return "", err
	}

	return path, nil
}
