package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/arenalab/skillrate/internal/domain/model"
	"github.com/arenalab/skillrate/pkg/metrics"
)

// Default memory store configuration constants.
const defaultShardCount = 8

// row is the stored state for one player.
type row struct {
	rating     model.PlayerRating
	generation uint64
}

type shard struct {
	mu   sync.RWMutex
	rows map[string]*row
}

// MemoryStore implements RatingStore with sharded in-memory state.
//
// Ordering for Rank/TopN: rating DESC, then playerID ASC, which keeps
// leaderboard output deterministic for equal ratings. Writers for the
// same player always hit the same shard, and ApplyMatch takes both
// shard locks in a fixed order so concurrent pairwise applies cannot
// deadlock.
type MemoryStore struct {
	shards     []*shard
	shardCount int
}

// NewMemoryStore constructs an in-memory store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shardCount: defaultShardCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{rows: make(map[string]*row)}
	}
	return s
}

func (s *MemoryStore) shardFor(playerID string) (int, *shard) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	idx := int(h.Sum32()) % s.shardCount
	if idx < 0 {
		idx += s.shardCount
	}
	return idx, s.shards[idx]
}

// Snapshot implements RatingStore.Snapshot, creating a defaults row on
// first appearance of the player key.
func (s *MemoryStore) Snapshot(_ context.Context, playerID string) (Snapshot, error) {
	_, sh := s.shardFor(playerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	r, ok := sh.rows[playerID]
	if !ok {
		r = &row{rating: model.NewPlayerRating(playerID)}
		sh.rows[playerID] = r
	}
	return Snapshot{Row: r.rating, Generation: r.generation}, nil
}

// ApplyMatch implements RatingStore.ApplyMatch with optimistic
// concurrency on both generations.
func (s *MemoryStore) ApplyMatch(_ context.Context, w PairWrite) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreApplyLatency(float64(time.Since(start).Milliseconds()))
	}()

	idxA, shA := s.shardFor(w.A.PlayerID)
	idxB, shB := s.shardFor(w.B.PlayerID)

	// Fixed lock order prevents deadlock between concurrent applies.
	switch {
	case idxA == idxB:
		shA.mu.Lock()
		defer shA.mu.Unlock()
	case idxA < idxB:
		shA.mu.Lock()
		shB.mu.Lock()
		defer shA.mu.Unlock()
		defer shB.mu.Unlock()
	default:
		shB.mu.Lock()
		shA.mu.Lock()
		defer shB.mu.Unlock()
		defer shA.mu.Unlock()
	}

	rA, okA := shA.rows[w.A.PlayerID]
	rB, okB := shB.rows[w.B.PlayerID]
	if !okA || !okB {
		return ErrNotFound
	}
	if rA.generation != w.GenA || rB.generation != w.GenB {
		return ErrStaleSnapshot
	}

	rA.rating = w.A.Row()
	rA.generation++
	rB.rating = w.B.Row()
	rB.generation++
	return nil
}

// Get implements RatingStore.Get.
func (s *MemoryStore) Get(_ context.Context, playerID string) (Entry, error) {
	_, sh := s.shardFor(playerID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	r, ok := sh.rows[playerID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return toEntry(r.rating, 0), nil
}

// Rank returns the player's row with its current leaderboard position.
func (s *MemoryStore) Rank(ctx context.Context, playerID string) (Entry, error) {
	target, err := s.Get(ctx, playerID)
	if err != nil {
		return Entry{}, err
	}

	rank := 1
	for _, sh := range s.shards {
		sh.mu.RLock()
		for id, r := range sh.rows {
			if id == playerID {
				continue
			}
			if r.rating.Rating > target.Rating ||
				(r.rating.Rating == target.Rating && id < playerID) {
				rank++
			}
		}
		sh.mu.RUnlock()
	}
	target.Rank = rank
	return target, nil
}

// TopN returns the top N entries ordered by rating desc.
func (s *MemoryStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	all := make([]Entry, 0, 64)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.rows {
			all = append(all, toEntry(r.rating, 0))
		}
		sh.mu.RUnlock()
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		return all[i].PlayerID < all[j].PlayerID
	})

	if n < len(all) {
		all = all[:n]
	}
	for i := range all {
		all[i].Rank = i + 1
	}
	return all, nil
}

// Count returns the total number of players.
func (s *MemoryStore) Count(_ context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.rows)
		sh.mu.RUnlock()
	}
	return total
}

func toEntry(r model.PlayerRating, rank int) Entry {
	return Entry{
		Rank:       rank,
		PlayerID:   r.PlayerID,
		Rating:     r.Rating,
		Deviation:  r.Deviation,
		Volatility: r.Volatility,
	}
}
