// Package repository defines the rating store contracts and errors.
package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithShardCount sets the number of shards in the in-memory store.
func WithShardCount(count int) Option {
	return func(s *MemoryStore) {
		if count > 0 {
			s.shardCount = count
		}
	}
}
