// Package dedupe defines the interface for match idempotency tracking.
package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of match IDs kept in memory.
// Values below one are ignored.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}
