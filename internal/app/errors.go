package app

import "errors"

// Sentinel kinds for service wiring errors.
var (
	ErrNoStore = errors.New("rating store is required")
)
