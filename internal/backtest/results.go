package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// BuildSummary aggregates daily returns into best/worst/mean/total. Total is
// the plain sum of daily percents; compounding shows up in ending cash, not
// here.
func BuildSummary(daily []types.DailyReturn) types.ReturnSummary {
	if len(daily) == 0 {
		return types.ReturnSummary{}
	}

	best := daily[0].Percent
	worst := daily[0].Percent
	total := decimal.Zero

	for _, day := range daily {
		if day.Percent > best {
			best = day.Percent
		}

		if day.Percent < worst {
			worst = day.Percent
		}

		total = total.Add(decimal.NewFromFloat(day.Percent))
	}

	mean, _ := total.Div(decimal.NewFromInt(int64(len(daily)))).Float64()
	totalFloat, _ := total.Float64()

	return types.ReturnSummary{
		Best:  best,
		Worst: worst,
		Mean:  mean,
		Total: totalFloat,
		Days:  len(daily),
	}
}

// WriteResults writes the per-symbol results as YAML under dir.
func WriteResults(dir string, results []types.SymbolResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to create results directory", err)
	}

	data, err := yaml.Marshal(results)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to marshal results", err)
	}

	path := filepath.Join(dir, "results.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to write results", err)
	}

	return nil
}

// FormatResults renders a human-readable results block for the CLI.
func FormatResults(results []types.SymbolResult) string {
	var sb strings.Builder

	sb.WriteString("==================== RESULTS ====================\n")

	for _, r := range results {
		if r.Excluded {
			fmt.Fprintf(&sb, "%-6s excluded: %s\n", r.Symbol, r.ExcludedReason)

			continue
		}

		fmt.Fprintf(&sb, "%-6s days=%d best=%.2f%% worst=%.2f%% avg=%.2f%% total=%.2f%% cash: %.2f -> %.2f\n",
			r.Symbol, r.Summary.Days, r.Summary.Best, r.Summary.Worst, r.Summary.Mean, r.Summary.Total,
			r.StartingCash, r.EndingCash)
	}

	sb.WriteString("=================================================\n")

	return sb.String()
}
