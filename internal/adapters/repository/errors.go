package repository

import "errors"

// Sentinel kinds for rating store errors.
var (
	ErrNotFound        = errors.New("player not found")
	ErrInvalidLimit    = errors.New("invalid leaderboard limit")
	ErrStaleSnapshot   = errors.New("rating snapshot is stale")
	ErrDuplicateMatch  = errors.New("match already recorded")
	ErrHistoryDisabled = errors.New("match history is not enabled")
)
