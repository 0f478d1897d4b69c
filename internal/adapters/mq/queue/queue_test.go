package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/arenalab/skillrate/internal/domain/model"
)

func outcome(matchID, a, b string) model.MatchOutcome {
	return model.MatchOutcome{
		MatchID:  matchID,
		PlayerA:  model.Participant{PlayerID: a},
		PlayerB:  model.Participant{PlayerID: b},
		ScoreA:   1.0,
		PlayedAt: time.Now().UTC(),
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Test empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Test enqueue
	if !q.Enqueue(ctx, outcome("match1", "alice", "bob")) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Test dequeue
	outcomeChan := q.Dequeue(ctx)
	o := <-outcomeChan
	if o.MatchID != "match1" {
		t.Errorf("expected match1, got %v", o.MatchID)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, outcome("match1", "alice", "bob")) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, outcome("match2", "carol", "dave")) {
		t.Error("expected enqueue to succeed")
	}

	// Try to enqueue when full
	if q.Enqueue(ctx, outcome("match3", "erin", "frank")) {
		t.Error("expected enqueue to fail when full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	numGoroutines := 10
	numOutcomes := 100

	// Start producer goroutines
	done := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < numOutcomes; j++ {
				o := outcome(
					fmt.Sprintf("match%d_%d", id, j),
					fmt.Sprintf("left%d", id),
					fmt.Sprintf("right%d", id),
				)
				for !q.Enqueue(ctx, o) {
					time.Sleep(time.Millisecond)
				}
			}
			done <- true
		}(i)
	}

	// Start consumer goroutines
	consumed := make(chan string, numGoroutines*numOutcomes)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			outcomeChan := q.Dequeue(ctx)
			for o := range outcomeChan {
				consumed <- o.MatchID
			}
		}()
	}

	// Wait for producers to finish
	for i := 0; i < numGoroutines; i++ {
		<-done
	}

	// Wait a bit for consumers to process
	time.Sleep(100 * time.Millisecond)

	// Check final queue length
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, outcome("match1", "alice", "bob")) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, outcome("match2", "carol", "dave")) {
		t.Error("expected enqueue to succeed")
	}

	// Check initial state
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	// Close the queue
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}

	// Check closed state
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}

	// Try to enqueue after closing (should fail)
	if q.Enqueue(ctx, outcome("match3", "erin", "frank")) {
		t.Error("expected enqueue to fail after closing")
	}

	// Dequeue channel should drain the backlog and then close
	outcomeChan := q.Dequeue(ctx)

	timeout := time.After(100 * time.Millisecond)
	drained := 0
	for {
		select {
		case _, ok := <-outcomeChan:
			if !ok {
				goto channelClosed
			}
			drained++
		case <-timeout:
			t.Error("expected dequeue channel to be closed within timeout")
			return
		}
	}
channelClosed:
	if drained != 2 {
		t.Errorf("expected 2 drained outcomes, got %d", drained)
	}

	// Close again should not error
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
