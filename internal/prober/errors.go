package prober

import "errors"

// Prober errors.
var (
	// ErrInvalidTTL indicates a TTL outside 1..=255 was requested.
	ErrInvalidTTL = errors.New("prober: ttl must be between 1 and 255")
)
