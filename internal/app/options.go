package app

import (
	workerpool "github.com/arenalab/skillrate/internal/adapters/mq/worker"
	"github.com/arenalab/skillrate/internal/adapters/repository"
	"github.com/arenalab/skillrate/internal/domain/glicko"
	"github.com/arenalab/skillrate/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of rating workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the outcome queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the match-id idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithApplyRetries bounds recomputation after stale pairwise applies.
func WithApplyRetries(retries int) Option {
	return func(s *Service) {
		if retries >= 0 {
			s.applyRetries = retries
		}
	}
}

// WithRecorder attaches a match history recorder.
func WithRecorder(recorder repository.MatchRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithBoard attaches a read-side leaderboard projection.
func WithBoard(board workerpool.Board) Option {
	return func(s *Service) {
		if board != nil {
			s.board = board
		}
	}
}

// WithEngineOptions forwards tunables to the rating engine.
func WithEngineOptions(opts ...glicko.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
