// Package worker defines worker contracts for asynchronous rating
// application.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/arenalab/skillrate/internal/adapters/repository"
	"github.com/arenalab/skillrate/internal/domain/glicko"
	"github.com/arenalab/skillrate/internal/domain/model"
	"github.com/arenalab/skillrate/internal/domain/pairwise"
	"github.com/arenalab/skillrate/pkg/logger"
	"github.com/arenalab/skillrate/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultApplyRetries     = 3
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Outcome abstracts what workers read off the queue.
type Outcome = model.MatchOutcome

// Queue defines how workers receive outcomes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Outcome
}

// Rater computes both sides of a match from pre-match snapshots.
type Rater interface {
	Rate(outcome model.MatchOutcome) (pairwise.Update, error)
}

// Store is the slice of the rating store workers need.
type Store interface {
	Snapshot(ctx context.Context, playerID string) (repository.Snapshot, error)
	ApplyMatch(ctx context.Context, w repository.PairWrite) error
}

// Recorder persists the audit trail for applied matches.
type Recorder interface {
	Record(ctx context.Context, rec model.MatchHistoryRecord) error
}

// Board is an optional read-side leaderboard projection refreshed after
// each applied match.
type Board interface {
	Publish(ctx context.Context, playerID string, rating float64) error
}

// Worker processes match outcomes into rating updates.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// RatingWorker implements Worker.
type RatingWorker struct {
	queue    Queue
	rater    Rater
	store    Store
	recorder Recorder
	board    Board // nil when no projection is configured
	name     string

	applyRetries int

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewRatingWorker creates a new worker with configuration options.
func NewRatingWorker(queue Queue, rater Rater, store Store, recorder Recorder, opts ...Option) *RatingWorker {
	w := &RatingWorker{
		queue:        queue,
		rater:        rater,
		store:        store,
		recorder:     recorder,
		name:         "worker",
		applyRetries: defaultApplyRetries,
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *RatingWorker) Run(ctx context.Context) {
	defer close(w.done)

	outcomes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case outcome, ok := <-outcomes:
			if !ok {
				return
			}
			if err := w.processOutcome(ctx, outcome); err != nil {
				w.logger.Error(ctx, "error processing match outcome",
					logger.String("matchID", outcome.MatchID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *RatingWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processOutcome rates one match and applies both sides atomically.
//
// The pre-match snapshots are read fresh from the store so the pair is
// computed from a single consistent generation. A stale apply means the
// same player was rated concurrently by another match; the outcome is
// then recomputed from new snapshots, up to the retry budget.
func (w *RatingWorker) processOutcome(ctx context.Context, outcome Outcome) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
	}()

	for attempt := 0; ; attempt++ {
		snapA, err := w.store.Snapshot(ctx, outcome.PlayerA.PlayerID)
		if err != nil {
			metrics.RecordWorkerError()
			return fmt.Errorf("snapshot %s: %w", outcome.PlayerA.PlayerID, err)
		}
		snapB, err := w.store.Snapshot(ctx, outcome.PlayerB.PlayerID)
		if err != nil {
			metrics.RecordWorkerError()
			return fmt.Errorf("snapshot %s: %w", outcome.PlayerB.PlayerID, err)
		}

		outcome.PlayerA.PreRating = snapA.Row
		outcome.PlayerB.PreRating = snapB.Row

		rateStart := time.Now()
		update, err := w.rater.Rate(outcome)
		metrics.RecordRatingLatency(float64(time.Since(rateStart).Milliseconds()))
		if err != nil {
			// Hard failure: the match stays unrated, neither row moves.
			metrics.RecordMatchRejected()
			metrics.RecordWorkerError()
			if errors.Is(err, glicko.ErrInvalidPriorState) {
				w.logger.Error(ctx, "corrupted rating row, match not rated",
					logger.String("matchID", outcome.MatchID),
					logger.Error(err),
				)
			}
			return fmt.Errorf("rate match %s: %w", outcome.MatchID, err)
		}
		metrics.RecordSolverIterations(update.PlayerA.Iterations)
		metrics.RecordSolverIterations(update.PlayerB.Iterations)
		if !update.PlayerA.Converged || !update.PlayerB.Converged {
			metrics.RecordSolverLowConfidence()
			w.logger.Warn(ctx, "volatility solve hit iteration budget",
				logger.String("matchID", outcome.MatchID),
				logger.Bool("convergedA", update.PlayerA.Converged),
				logger.Bool("convergedB", update.PlayerB.Converged),
			)
		}

		err = w.store.ApplyMatch(ctx, repository.PairWrite{
			A:    update.PlayerA,
			B:    update.PlayerB,
			GenA: snapA.Generation,
			GenB: snapB.Generation,
		})
		if errors.Is(err, repository.ErrStaleSnapshot) {
			metrics.RecordStaleSnapshotRetry()
			if attempt < w.applyRetries {
				continue
			}
			metrics.RecordWorkerError()
			return fmt.Errorf("apply match %s: retries exhausted: %w", outcome.MatchID, err)
		}
		if err != nil {
			metrics.RecordWorkerError()
			return fmt.Errorf("apply match %s: %w", outcome.MatchID, err)
		}

		metrics.RecordMatchRated()
		w.finish(ctx, update)
		return nil
	}
}

// finish records the audit row and refreshes the projection. Both are
// best-effort once the ratings are applied; failures are logged, not
// rolled back.
func (w *RatingWorker) finish(ctx context.Context, update pairwise.Update) {
	if w.recorder != nil {
		if err := w.recorder.Record(ctx, update.History); err != nil &&
			!errors.Is(err, repository.ErrDuplicateMatch) {
			w.logger.Error(ctx, "match history record failed",
				logger.String("matchID", update.History.MatchID),
				logger.Error(err),
			)
		}
	}
	if w.board != nil {
		for _, u := range []model.PlayerRatingUpdate{update.PlayerA, update.PlayerB} {
			if err := w.board.Publish(ctx, u.PlayerID, u.Rating); err != nil {
				w.logger.Warn(ctx, "leaderboard projection update failed",
					logger.String("playerID", u.PlayerID),
					logger.Error(err),
				)
			}
		}
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*RatingWorker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, rater Rater, store Store, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*RatingWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewRatingWorker(queue, rater, store, recorder, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown drains the queue and stops the pool within a timeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
