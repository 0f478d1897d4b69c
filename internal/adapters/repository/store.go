// Package repository defines the rating store contracts and errors.
package repository

import (
	"context"

	"github.com/arenalab/skillrate/internal/domain/model"
)

// Entry represents one leaderboard row.
type Entry struct {
	Rank       int
	PlayerID   string
	Rating     float64
	Deviation  float64
	Volatility float64
}

// Snapshot is a consistent read of one player's rating row plus the
// generation token used for optimistic concurrency control. A pairwise
// apply computed from this snapshot is rejected with ErrStaleSnapshot if
// the stored row has advanced past Generation since the read.
type Snapshot struct {
	Row        model.PlayerRating
	Generation uint64
}

// PairWrite carries both sides of one rated match plus the generations
// their updates were computed from.
type PairWrite struct {
	A    model.PlayerRatingUpdate
	B    model.PlayerRatingUpdate
	GenA uint64
	GenB uint64
}

// RatingStore owns the player rating rows. Implementations must make
// ApplyMatch atomic across both rows: either both sides are written and
// both generations advance, or neither does.
type RatingStore interface {
	// Snapshot returns the player's current row, creating it with the
	// standard defaults on first appearance.
	Snapshot(ctx context.Context, playerID string) (Snapshot, error)

	// ApplyMatch writes both post-match rows if and only if both
	// generations still match the stored rows. Returns
	// ErrStaleSnapshot when either row advanced in the meantime.
	ApplyMatch(ctx context.Context, w PairWrite) error

	// Get returns the current row for a player, without rank.
	// Returns ErrNotFound for an unknown player.
	Get(ctx context.Context, playerID string) (Entry, error)

	// Rank returns the row with its current leaderboard position.
	Rank(ctx context.Context, playerID string) (Entry, error)

	// TopN returns the top-N entries ordered by rating desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players tracked.
	Count(ctx context.Context) int
}

// MatchRecorder persists the immutable match history.
type MatchRecorder interface {
	// Record appends one audit record. Recording the same match id
	// twice is an error.
	Record(ctx context.Context, rec model.MatchHistoryRecord) error

	// History returns up to limit records involving the player, most
	// recent first.
	History(ctx context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error)
}
