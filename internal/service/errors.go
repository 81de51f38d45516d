package service

import "errors"

// Common service errors. Callers check them with errors.Is; the API layer
// maps them to HTTP status codes.
var (
	// ErrInvalidListLimit indicates a negative page size was requested.
	ErrInvalidListLimit = errors.New("limit must be a positive integer")
)
