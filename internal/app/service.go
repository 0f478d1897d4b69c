// Package app provides the core business service that implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"runtime"
	"sync"

	outcomequeue "github.com/arenalab/skillrate/internal/adapters/mq/queue"
	workerpool "github.com/arenalab/skillrate/internal/adapters/mq/worker"
	"github.com/arenalab/skillrate/internal/adapters/repository"
	"github.com/arenalab/skillrate/internal/domain/dedupe"
	"github.com/arenalab/skillrate/internal/domain/glicko"
	"github.com/arenalab/skillrate/internal/domain/model"
	"github.com/arenalab/skillrate/internal/domain/pairwise"
	"github.com/arenalab/skillrate/pkg/logger"
	"github.com/arenalab/skillrate/pkg/metrics"
)

// Service wires the rating pipeline: dedupe -> queue -> workers ->
// store/recorder, plus the read surface the HTTP API serves from.
type Service struct {
	mu sync.RWMutex

	// Injected collaborators. The store is required; recorder and board
	// are optional.
	store    repository.RatingStore
	recorder repository.MatchRecorder
	board    workerpool.Board

	// Built on Start.
	deduper      dedupe.Deduper
	outcomeQueue outcomequeue.Queue
	orchestrator *pairwise.Orchestrator
	pool         *workerpool.Pool

	// Configuration.
	workerCount  int
	queueSize    int
	dedupeSize   int
	applyRetries int
	engineOpts   []glicko.Option

	started bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(store repository.RatingStore, opts ...Option) *Service {
	s := &Service{
		store:        store,
		workerCount:  runtime.NumCPU() * 4,
		queueSize:    100000,
		dedupeSize:   50000,
		applyRetries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil {
		return ErrNoStore
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting rating service...")

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.outcomeQueue = outcomequeue.NewInMemoryQueue(
		outcomequeue.WithCapacity(s.queueSize),
	)
	s.orchestrator = pairwise.New(glicko.NewParams(s.engineOpts...))

	workerOpts := []workerpool.Option{
		workerpool.WithApplyRetries(s.applyRetries),
	}
	if s.board != nil {
		workerOpts = append(workerOpts, workerpool.WithBoard(s.board))
	}
	s.pool = workerpool.NewPool(s.workerCount, s.outcomeQueue, s.orchestrator, s.store, s.recorder, workerOpts...)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping rating service...")

	if q, ok := s.outcomeQueue.(*outcomequeue.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if closer, ok := s.recorder.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "rating service stopped")
}

// SeenAndRecord atomically checks if a match id was seen and records it
// if not. Returns true if the match was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordMatchDuplicate()
	}
	return seen
}

// Unrecord removes a match ID from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Enqueue submits a match outcome for asynchronous rating. Returns
// false on backpressure.
func (s *Service) Enqueue(ctx context.Context, outcome model.MatchOutcome) bool {
	ok := s.outcomeQueue.Enqueue(ctx, outcome)
	if !ok {
		s.logger.Warn(ctx, "outcome queue rejected match",
			logger.String("matchID", outcome.MatchID),
		)
	}
	return ok
}

// TopN returns the top N leaderboard entries ordered by rating desc.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.store.TopN(ctx, n)
}

// Player returns the rating row and rank for a player id.
func (s *Service) Player(ctx context.Context, playerID string) (repository.Entry, error) {
	return s.store.Rank(ctx, playerID)
}

// History returns the most recent match records for a player.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error) {
	if s.recorder == nil {
		return nil, repository.ErrHistoryDisabled
	}
	return s.recorder.History(ctx, playerID, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"applyRetries": s.applyRetries,
	}

	if s.started {
		queueLen := s.outcomeQueue.Len(ctx)
		totalPlayers := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalPlayers"] = totalPlayers

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalPlayers(totalPlayers)
		metrics.UpdateWorkerCount(s.workerCount)
	}
	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
