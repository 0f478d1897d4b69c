// Package model contains domain models passed between layers.
package model

import "time"

// Default rating values assigned on a player's first appearance.
const (
	DefaultRating     = 1500.0
	DefaultDeviation  = 350.0
	DefaultVolatility = 0.06
)

// PlayerRating is a player's current skill estimate on the external scale.
type PlayerRating struct {
	PlayerID   string  // opaque player key
	Rating     float64 // centered near 1500
	Deviation  float64 // uncertainty, larger means less confidence
	Volatility float64 // expected fluctuation of true skill over time
}

// NewPlayerRating returns a fresh rating row at the standard defaults.
func NewPlayerRating(playerID string) PlayerRating {
	return PlayerRating{
		PlayerID:   playerID,
		Rating:     DefaultRating,
		Deviation:  DefaultDeviation,
		Volatility: DefaultVolatility,
	}
}

// Participant pairs an identity with its pre-match rating snapshot.
type Participant struct {
	PlayerID  string
	PreRating PlayerRating
}

// MatchOutcome is the immutable result of one head-to-head contest as
// produced by the session finalizer. ScoreA is the outcome for side A in
// [0,1]: 1 win, 0 loss, 0.5 draw. Intermediate values encode continuous
// margins; side B's score is the complement only for the binary/draw
// encoding.
type MatchOutcome struct {
	MatchID string
	PlayerA Participant
	PlayerB Participant
	ScoreA  float64
	// ScoreB overrides the complement for continuous-margin encodings
	// where the two sides are scored independently. Nil means 1-ScoreA.
	ScoreB   *float64
	PlayedAt time.Time
}

// OutcomeForB returns side B's score: the explicit independent score
// when present, otherwise the complement of side A's.
func (m MatchOutcome) OutcomeForB() float64 {
	if m.ScoreB != nil {
		return *m.ScoreB
	}
	return 1 - m.ScoreA
}

// PlayerRatingUpdate is the new rating triple written back to the store.
type PlayerRatingUpdate struct {
	PlayerID   string
	Rating     float64
	Deviation  float64
	Volatility float64
	// Iterations is the number of steps the volatility solve took.
	Iterations int
	// Converged is false when the volatility solve hit its iteration
	// budget before reaching tolerance. The result is still usable.
	Converged bool
}

// Row converts the update into a PlayerRating value.
func (u PlayerRatingUpdate) Row() PlayerRating {
	return PlayerRating{
		PlayerID:   u.PlayerID,
		Rating:     u.Rating,
		Deviation:  u.Deviation,
		Volatility: u.Volatility,
	}
}

// MatchHistoryRecord is the append-only audit row for one rated match.
// ScoreB preserves the independent side-B score when the outcome carried
// one; nil means side B was rated with the complement 1-ScoreA.
type MatchHistoryRecord struct {
	MatchID  string
	PlayedAt time.Time
	PlayerA  PlayerChange
	PlayerB  PlayerChange
	ScoreA   float64
	ScoreB   *float64
}

// OutcomeForB returns the score side B was rated with.
func (r MatchHistoryRecord) OutcomeForB() float64 {
	if r.ScoreB != nil {
		return *r.ScoreB
	}
	return 1 - r.ScoreA
}

// PlayerChange captures one side's before/after rating triples.
type PlayerChange struct {
	PlayerID string
	Before   PlayerRating
	After    PlayerRating
}
