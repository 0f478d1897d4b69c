package glicko

import "errors"

// Sentinel kinds for rating-engine errors.
var (
	// ErrInvalidOutcome marks an outcome score outside [0,1].
	ErrInvalidOutcome = errors.New("outcome outside [0,1]")

	// ErrInvalidPriorState marks a prior rating with non-positive
	// deviation or volatility. This indicates corrupted storage, not a
	// user error; the engine refuses to produce an update from it.
	ErrInvalidPriorState = errors.New("invalid prior rating state")
)
