package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInvalidBar           ErrorCode = 103
	ErrCodeInvalidPeriod        ErrorCode = 104
	ErrCodeInvalidSession       ErrorCode = 105

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeHistoricalDataFailed  ErrorCode = 203

	// Indicator errors (300-399)
	ErrCodeInsufficientData     ErrorCode = 300
	ErrCodeIndicatorCalculation ErrorCode = 301

	// Ledger errors (400-499)
	ErrCodePositionAlreadyOpen ErrorCode = 400
	ErrCodePositionNotOpen     ErrorCode = 401
	ErrCodeOverfill            ErrorCode = 402

	// Order/trading errors (500-599)
	ErrCodeOrderFailed    ErrorCode = 500
	ErrCodeOrderRejected  ErrorCode = 501
	ErrCodeOrderCancelled ErrorCode = 502
	ErrCodeOrderNotFound  ErrorCode = 503

	// Backtest errors (600-699)
	ErrCodeBacktestNoData       ErrorCode = 600
	ErrCodeBacktestConfigError  ErrorCode = 601
	ErrCodeBacktestStoreFailed  ErrorCode = 602
	ErrCodeBacktestSymbolFailed ErrorCode = 603

	// Live trading errors (700-799)
	ErrCodeFeedFailed      ErrorCode = 700
	ErrCodeAccountFailed   ErrorCode = 701
	ErrCodeReconcileFailed ErrorCode = 702
)
