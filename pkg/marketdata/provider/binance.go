package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
	"github.com/derekmborges/algorithmic-trading/pkg/marketdata/writer"
)

// binancePageSize is the Binance klines API page limit.
const binancePageSize = 500

// BinanceProvider downloads klines from the public Binance API. No
// credentials are required for historical market data.
type BinanceProvider struct {
	client *binance.Client
	writer writer.BarWriter
}

// NewBinanceProvider creates the provider.
func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{client: binance.NewClient("", "")}
}

// ConfigWriter implements Provider.
func (b *BinanceProvider) ConfigWriter(w writer.BarWriter) {
	b.writer = w
}

// Download implements Provider. The timespan is translated to a Binance
// kline interval, e.g. minute x5 becomes "5m".
func (b *BinanceProvider) Download(ctx context.Context, ticker string, startDate, endDate time.Time, multiplier int, timespan models.Timespan, onProgress OnDownloadProgress) (path string, err error) {
	if b.writer == nil {
		return "", errors.New(errors.ErrCodeInvalidConfiguration, "no writer configured, call ConfigWriter first")
	}

	interval, err := binanceInterval(timespan, multiplier)
	if err != nil {
		return "", err
	}

	if err := b.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to initialize writer", err)
	}

	defer func() {
		if cerr := b.writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	startMillis := startDate.UnixMilli()
	endMillis := endDate.UnixMilli()
	current := startMillis

	for {
		klines, err := b.client.NewKlinesService().
			Symbol(ticker).
			Interval(interval).
			StartTime(current).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to fetch klines from Binance", err)
		}

		if onProgress != nil {
			onProgress(float64(current), float64(endMillis), fmt.Sprintf("Downloading %s klines from Binance", ticker))
		}

		for _, k := range klines {
			bar, err := klineToBar(ticker, k)
			if err != nil {
				return "", err
			}

			if err := b.writer.Write(bar); err != nil {
				return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to write bar", err)
			}
		}

		// A short page means the range is exhausted.
		if len(klines) < binancePageSize {
			break
		}

		current = klines[len(klines)-1].CloseTime + 1
	}

	outputPath, err := b.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to finalize writer", err)
	}

	return outputPath, nil
}

func klineToBar(ticker string, k *binance.Kline) (types.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid open price", err)
	}

	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid high price", err)
	}

	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid low price", err)
	}

	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid close price", err)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid volume", err)
	}

	return types.Bar{
		Symbol: ticker,
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func binanceInterval(timespan models.Timespan, multiplier int) (string, error) {
	switch timespan {
	case models.Second:
		return fmt.Sprintf("%ds", multiplier), nil
	case models.Minute:
		return fmt.Sprintf("%dm", multiplier), nil
	case models.Hour:
		return fmt.Sprintf("%dh", multiplier), nil
	case models.Day:
		return fmt.Sprintf("%dd", multiplier), nil
	case models.Week:
		return fmt.Sprintf("%dw", multiplier), nil
	case models.Month:
		return fmt.Sprintf("%dM", multiplier), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timespan %s for Binance", timespan)
	}
}
