// Package dedupe defines the interface for match idempotency tracking.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen match IDs so a resubmitted outcome is acknowledged
// as a duplicate instead of rated twice.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing a retry. Used
	// when an outcome was marked seen but failed to enqueue.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

const defaultMaxSize = 50000

// inMemoryDeduper implements Deduper with a map plus a FIFO ring of the
// insertion order. When the cache is full the oldest ID is evicted, so
// memory stays bounded regardless of traffic.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // ring buffer of insertion order, len == maxSize
	head    int      // next slot to overwrite
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.maxSize)
	d.order = make([]string, d.maxSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	// Evict whatever currently occupies the slot we are about to reuse.
	if old := d.order[d.head]; old != "" {
		if _, ok := d.seen[old]; ok {
			delete(d.seen, old)
			d.size.Add(-1)
		}
	}

	d.seen[id] = struct{}{}
	d.order[d.head] = id
	d.head = (d.head + 1) % d.maxSize
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
