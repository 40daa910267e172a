package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market Data API Errors
	ErrTransport   = errors.New("transport failure contacting market data API")
	ErrAuth        = errors.New("market data API authentication failed")
	ErrRateLimited = errors.New("market data API rate limit exceeded")
	ErrBadRequest  = errors.New("market data API rejected the request parameters")

	// Pipeline Errors
	ErrDataQuality = errors.New("candle batch failed data quality validation")

	// Storage Errors
	ErrStorage = errors.New("series storage read/write failed")
)
