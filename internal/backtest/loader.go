package backtest

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// BarSource reads historical bars out of a Parquet or CSV file through a
// DuckDB view. The file must carry time, symbol, open, high, low, close and
// volume columns.
type BarSource struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// NewBarSource opens the data file as a DuckDB view.
func NewBarSource(path string) (*BarSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	reader := "read_parquet"
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		reader = "read_csv_auto"
	}

	// CREATE VIEW does not take placeholders.
	query := fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM %s('%s')`, reader, path)
	if _, err := db.Exec(query); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to load market data from %s", path)
	}

	return &BarSource{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Symbols returns the distinct symbols present in the data, sorted.
func (b *BarSource) Symbols() ([]string, error) {
	rows, err := b.db.Query(`SELECT DISTINCT symbol FROM market_data ORDER BY symbol`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// Bars returns all bars for a symbol ordered by time, optionally bounded by
// start and end.
func (b *BarSource) Bars(symbol string, start, end optional.Option[time.Time]) ([]types.Bar, error) {
	query := b.sq.Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("time")

	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	rows, err := query.RunWith(b.db).Query()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query bars for %s", symbol)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar
		if err := rows.Scan(&bar.Time, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	return bars, rows.Err()
}

// LastCloseBefore returns the close of the most recent bar strictly before t,
// or None when the data holds no earlier bars. The driver uses it to seed the
// previous-day close when the replay window starts mid-file.
func (b *BarSource) LastCloseBefore(symbol string, t time.Time) (optional.Option[float64], error) {
	query := b.sq.Select("close").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		Where(squirrel.Lt{"time": t}).
		OrderBy("time DESC").
		Limit(1)

	var closePrice float64

	err := query.RunWith(b.db).QueryRow().Scan(&closePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[float64](), nil
	}

	if err != nil {
		return optional.None[float64](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query previous close for %s", symbol)
	}

	return optional.Some(closePrice), nil
}

// Close releases the database.
func (b *BarSource) Close() error {
	return b.db.Close()
}
