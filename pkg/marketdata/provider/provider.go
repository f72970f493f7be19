// Package provider contains the market data download providers.
package provider

import (
	"context"
	"time"

	"github.com/polygon-io/client-go/rest/models"

	"github.com/derekmborges/algorithmic-trading/pkg/marketdata/writer"
)

// OnDownloadProgress reports download progress: current and total are in
// provider-specific units (days, timestamps), message is human readable.
type OnDownloadProgress func(current float64, total float64, message string)

// Provider downloads historical bars for one ticker into the configured
// writer and returns the output path.
type Provider interface {
	ConfigWriter(w writer.BarWriter)
	Download(ctx context.Context, ticker string, startDate, endDate time.Time, multiplier int, timespan models.Timespan, onProgress OnDownloadProgress) (string, error)
}
