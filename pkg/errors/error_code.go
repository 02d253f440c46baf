package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidParameter     ErrorCode = 101
	ErrCodeConfigParseFailed    ErrorCode = 102

	// Feed errors (200-299)
	ErrCodeFeedUnavailable   ErrorCode = 200
	ErrCodeEmptyPriceFeed    ErrorCode = 201
	ErrCodeEmptyScoreFeed    ErrorCode = 202
	ErrCodeFeedLoadFailed    ErrorCode = 203
	ErrCodeFeedQueryFailed   ErrorCode = 204
	ErrCodeBarNotFound       ErrorCode = 205
	ErrCodeMalformedFeedData ErrorCode = 206

	// Indicator errors (300-399)
	ErrCodeInsufficientHistory  ErrorCode = 300
	ErrCodeIndicatorNotComputed ErrorCode = 301
	ErrCodeIndicatorConfigError ErrorCode = 302

	// Simulation errors (400-499)
	ErrCodeSimulationPreCheck ErrorCode = 400
	ErrCodeSimulationAborted  ErrorCode = 401

	// Ledger errors (500-599)
	ErrCodeLedgerInitFailed   ErrorCode = 500
	ErrCodeLedgerWriteFailed  ErrorCode = 501
	ErrCodeLedgerQueryFailed  ErrorCode = 502
	ErrCodeLedgerExportFailed ErrorCode = 503

	// Report errors (600-699)
	ErrCodeEmptyEquityCurve  ErrorCode = 600
	ErrCodeReportWriteFailed ErrorCode = 601
)
