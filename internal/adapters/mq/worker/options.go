// Package worker defines worker contracts for asynchronous rating
// application.
package worker

import (
	"github.com/arenalab/skillrate/pkg/logger"
)

// Option applies a configuration option to the RatingWorker.
type Option func(*RatingWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *RatingWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *RatingWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithApplyRetries sets how many times a stale pairwise apply is
// recomputed from fresh snapshots before giving up.
func WithApplyRetries(retries int) Option {
	return func(w *RatingWorker) {
		if retries >= 0 {
			w.applyRetries = retries
		}
	}
}

// WithBoard attaches a read-side leaderboard projection refreshed after
// each applied match.
func WithBoard(board Board) Option {
	return func(w *RatingWorker) {
		if board != nil {
			w.board = board
		}
	}
}
