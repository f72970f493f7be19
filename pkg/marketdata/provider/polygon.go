package provider

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/schollz/progressbar/v3"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
	"github.com/derekmborges/algorithmic-trading/pkg/marketdata/writer"
)

// PolygonProvider downloads aggregate bars from Polygon.io.
type PolygonProvider struct {
	client *polygon.Client
	writer writer.BarWriter
}

// NewPolygonProvider creates the provider with the given API key.
func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}

	return &PolygonProvider{client: polygon.New(apiKey)}, nil
}

// ConfigWriter implements Provider.
func (p *PolygonProvider) ConfigWriter(w writer.BarWriter) {
	p.writer = w
}

// Download implements Provider.
func (p *PolygonProvider) Download(ctx context.Context, ticker string, startDate, endDate time.Time, multiplier int, timespan models.Timespan, onProgress OnDownloadProgress) (path string, err error) {
	if p.writer == nil {
		return "", errors.New(errors.ErrCodeInvalidConfiguration, "no writer configured, call ConfigWriter first")
	}

	if err := p.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to initialize writer", err)
	}

	defer func() {
		if cerr := p.writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	totalDays := int(endDate.Sub(startDate).Hours()/24) + 1
	bar := progressbar.NewOptions(totalDays,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", ticker)),
		progressbar.OptionShowCount(),
	)

	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(startDate),
		To:         models.Millis(endDate),
	}.WithLimit(50000)

	iter := p.client.ListAggs(ctx, params)

	processed := 0

	for iter.Next() {
		agg := iter.Item()

		if onProgress != nil {
			onProgress(float64(processed), float64(totalDays), fmt.Sprintf("Downloading %s", ticker))
		}

		if err := p.writer.Write(types.Bar{
			Symbol: ticker,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		}); err != nil {
			return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to write bar", err)
		}

		processed++
		if processed%1000 == 0 {
			elapsed := int(time.Time(agg.Timestamp).Sub(startDate).Hours() / 24)
			_ = bar.Set(elapsed)
		}
	}

	if iter.Err() != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to iterate polygon aggregates", iter.Err())
	}

	_ = bar.Finish()

	outputPath, err := p.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to finalize writer", err)
	}

	return outputPath, nil
}
