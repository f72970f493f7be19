package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/derekmborges/algorithmic-trading/internal/backtest"
	"github.com/derekmborges/algorithmic-trading/internal/logger"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := backtest.ParseConfig(data)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	driver, err := backtest.NewDriver(cfg, log)
	if err != nil {
		return err
	}
	defer driver.Store().Close()

	results, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(backtest.FormatResults(results))

	return nil
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	cfg := backtest.DefaultConfig()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Replay historical bars through a trading strategy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the backtest YAML config",
				Value:   "config/backtest.yaml",
			},
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for the backtest config",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
