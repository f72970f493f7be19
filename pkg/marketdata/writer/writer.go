// Package writer persists downloaded bars. The only implementation writes
// through DuckDB and finalizes to a Parquet file the backtest loader reads
// directly.
package writer

import "github.com/derekmborges/algorithmic-trading/internal/types"

// BarWriter receives downloaded bars one at a time. Initialize must be
// called before Write; Finalize flushes and returns the output path.
type BarWriter interface {
	Initialize() error
	Write(bar types.Bar) error
	Finalize() (string, error)
	Close() error
}
