// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers file and env sources on top of the defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// Store backend selectors.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory outcome queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of rating workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the match-id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ApplyRetries bounds recomputation after a stale pairwise apply.
	ApplyRetries int `koanf:"apply_retries"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Store selects the rating store backend: memory, sqlite, postgres.
	Store string `koanf:"store"`

	// SQLitePath locates the sqlite database when store=sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// PostgresURL points at the database when store=postgres.
	PostgresURL string `koanf:"postgres_url"`

	// HistoryPath locates the embedded match history database used with
	// the memory store. Empty disables persistent history.
	HistoryPath string `koanf:"history_path"`

	// RedisAddr enables the Redis leaderboard projection when non-empty.
	RedisAddr string `koanf:"redis_addr"`

	// ShardCount configures the number of shards in the memory store.
	ShardCount int `koanf:"shard_count"`

	// Rating engine tunables.
	Tau             float64 `koanf:"tau"`
	SolverTolerance float64 `koanf:"solver_tolerance"`
	SolverBudget    int     `koanf:"solver_budget"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           100_000,
		WorkerCount:         runtime.NumCPU() * 4,
		DedupeSize:          500_000,
		ApplyRetries:        3,
		MaxLeaderboardLimit: 100,
		Store:               StoreMemory,
		SQLitePath:          "skillrate.sqlite",
		ShardCount:          8,
		Tau:                 0.5,
		SolverTolerance:     1e-10,
		SolverBudget:        60,
	}
}
