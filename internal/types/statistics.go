package types

// DailyReturn is one row of the backtest output table: the percent return a
// symbol produced on one trading day.
type DailyReturn struct {
	Symbol  string  `yaml:"symbol" json:"symbol" csv:"symbol"`
	Date    string  `yaml:"date" json:"date" csv:"date"`
	Percent float64 `yaml:"percent" json:"percent" csv:"percent"`
	Trades  int     `yaml:"trades" json:"trades" csv:"trades"`
}

// ReturnSummary aggregates a set of daily percent returns.
type ReturnSummary struct {
	Best  float64 `yaml:"best" json:"best"`
	Worst float64 `yaml:"worst" json:"worst"`
	Mean  float64 `yaml:"mean" json:"mean"`
	Total float64 `yaml:"total" json:"total"`
	Days  int     `yaml:"days" json:"days"`
}

// SymbolResult is the per-symbol backtest outcome, with ending cash after
// sequential per-day compounding.
type SymbolResult struct {
	Symbol       string        `yaml:"symbol" json:"symbol"`
	StartingCash float64       `yaml:"starting_cash" json:"starting_cash"`
	EndingCash   float64       `yaml:"ending_cash" json:"ending_cash"`
	Summary      ReturnSummary `yaml:"summary" json:"summary"`
	Excluded     bool          `yaml:"excluded" json:"excluded"`
	// ExcludedReason is set when the symbol was skipped (e.g. missing data).
	ExcludedReason string `yaml:"excluded_reason,omitempty" json:"excluded_reason,omitempty"`
}
