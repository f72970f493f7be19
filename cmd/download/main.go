package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/derekmborges/algorithmic-trading/pkg/marketdata"
)

// downloadAction downloads historical bars for one ticker into a Parquet
// file ready for the backtest loader.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	clientConfig := marketdata.ClientConfig{
		ProviderType:  marketdata.ProviderType(cmd.String("provider")),
		DataPath:      cmd.String("data"),
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
	}

	client, err := marketdata.NewClient(clientConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to create market data client: %w", err)
	}

	params := marketdata.DownloadParams{
		Ticker:    cmd.String("ticker"),
		StartDate: cmd.Timestamp("start"),
		EndDate:   cmd.Timestamp("end"),
		Timespan:  marketdata.Timespan(cmd.String("interval")),
	}

	path, err := client.Download(ctx, params)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	log.Printf("Downloaded %s to %s", params.Ticker, path)

	return nil
}

// screenAction prints the tickers passing the momentum screening thresholds
// for a given session date.
func screenAction(ctx context.Context, cmd *cli.Command) error {
	screener, err := marketdata.NewScreener(os.Getenv("POLYGON_API_KEY"), marketdata.DefaultScreenConfig())
	if err != nil {
		return err
	}

	tickers, err := screener.Screen(ctx, cmd.Timestamp("date"))
	if err != nil {
		return err
	}

	fmt.Println(strings.Join(tickers, "\n"))

	return nil
}

func main() {
	dateConfig := cli.TimestampConfig{Layouts: []string{"2006-01-02"}}

	cmd := &cli.Command{
		Name:  "download",
		Usage: "Download and screen historical market data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Ticker symbol",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config:   dateConfig,
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format, defaults to today",
				Value:   time.Now(),
				Config:  dateConfig,
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s, %s)", marketdata.ProviderPolygon, marketdata.ProviderBinance),
				Value:   string(marketdata.ProviderPolygon),
			},
			&cli.StringFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Bar interval (1m, 5m, 15m, 1h, 1d)",
				Value:   string(marketdata.TimespanOneMinute),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Output directory for the Parquet file",
				Value:   "data",
			},
		},
		Action: downloadAction,
		Commands: []*cli.Command{
			{
				Name:  "screen",
				Usage: "List tickers passing the momentum screening thresholds",
				Flags: []cli.Flag{
					&cli.TimestampFlag{
						Name:     "date",
						Usage:    "Session date in `YYYY-MM-DD` format",
						Required: true,
						Config:   dateConfig,
					},
				},
				Action: screenAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
