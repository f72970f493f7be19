package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/derekmborges/algorithmic-trading/internal/live"
	"github.com/derekmborges/algorithmic-trading/internal/logger"
)

func tradeAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := live.ParseConfig(data)
	if err != nil {
		return err
	}

	zlog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zlog.Sync()

	trader, err := live.NewBinanceTrader(cfg, zlog)
	if err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.StatusAddr != "" {
		server, err := live.NewStatusServer(cfg.StatusAddr, trader, zlog)
		if err != nil {
			return err
		}

		server.Start()

		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				zlog.Warn("status server shutdown failed", zap.Error(err))
			}
		}()
	}

	return trader.Run(runCtx)
}

func main() {
	cmd := &cli.Command{
		Name:  "trade",
		Usage: "Run the trading engine against a live broker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the live trading YAML config",
				Value:   "config/trade.yaml",
			},
		},
		Action: tradeAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
