// Package queue defines the contract for enqueuing and consuming match
// outcomes awaiting rating.
package queue

import (
	"context"
	"sync"

	"github.com/arenalab/skillrate/internal/domain/model"
	"github.com/arenalab/skillrate/pkg/metrics"
)

// Default queue configuration constants.
const defaultQueueCapacity = 100000

// Outcome is the payload type flowing through the queue.
type Outcome = model.MatchOutcome

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an outcome to the queue.
	// Returns false if the queue is full and the outcome was not enqueued.
	Enqueue(ctx context.Context, o Outcome) bool

	// Dequeue returns a channel that will receive outcomes as they
	// become available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Outcome

	// Len returns the current number of queued outcomes.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue. After closing, no new
	// outcomes can be enqueued and the dequeue channel is closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	outcomes chan Outcome
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.outcomes = make(chan Outcome, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)
	return q
}

// Enqueue adds an outcome to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, o Outcome) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueReject()
		return false
	}

	select {
	case q.outcomes <- o:
		metrics.RecordQueueEnqueue()
		q.publishDepth()
		return true
	case <-ctx.Done():
		metrics.RecordQueueReject()
		return false
	default:
		metrics.RecordQueueReject()
		return false // queue is full
	}
}

// Dequeue returns a channel that receives outcomes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome)
	go func() {
		defer close(out)
		for o := range q.outcomes {
			select {
			case out <- o:
				metrics.RecordQueueDequeue()
				q.publishDepth()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued outcomes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.outcomes)
	q.publishDepth()
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.outcomes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) publishDepth() {
	size := len(q.outcomes)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
