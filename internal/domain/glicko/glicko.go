// Package glicko implements the Glicko-2 rating update as a pure
// computation library.
//
// Naming follows the conventions of Glickman's paper:
//   - mu: rating converted to the internal scale
//   - phi: rating deviation converted to the internal scale
//   - sigma: rating volatility
//   - g: a weighting function that reduces the influence of opponents
//     whose own deviation is large
//   - e: the expected score against a given opponent
//
// See https://www.glicko.net/glicko/glicko2.pdf.
//
// The engine holds no state: every update is a pure function of the
// pre-match snapshots passed in, and inputs are never mutated.
package glicko

import "math"

// Default tunables.
const (
	defaultScale           = 173.7178
	defaultTau             = 0.5
	defaultTolerance       = 1e-10
	defaultIterationBudget = 60
)

// Rating is a skill estimate on the external scale.
type Rating struct {
	Rating     float64
	Deviation  float64
	Volatility float64
}

// valid reports whether the rating satisfies the engine's input invariants.
func (r Rating) valid() bool {
	return r.Deviation > 0 && r.Volatility > 0 &&
		!math.IsNaN(r.Rating) && !math.IsInf(r.Rating, 0)
}

// Result is the outcome of one rating update. Iterations is the number
// of secant steps the volatility solve took. Converged is false when the
// solve exhausted its iteration budget before reaching tolerance; the
// rating is still the best available estimate.
type Result struct {
	Rating     Rating
	Iterations int
	Converged  bool
}

// Params carries the engine tunables. The zero value is not usable;
// construct with NewParams.
type Params struct {
	scale           float64
	tau             float64
	tolerance       float64
	iterationBudget int
}

// NewParams returns engine parameters with paper defaults, adjusted by
// the provided options.
func NewParams(opts ...Option) Params {
	p := Params{
		scale:           defaultScale,
		tau:             defaultTau,
		tolerance:       defaultTolerance,
		iterationBudget: defaultIterationBudget,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// toInternal maps an external (rating, deviation) pair onto the internal
// (mu, phi) scale.
func (p Params) toInternal(rating, deviation float64) (mu, phi float64) {
	return (rating - 1500.0) / p.scale, deviation / p.scale
}

// toExternal is the exact inverse of toInternal.
func (p Params) toExternal(mu, phi float64) (rating, deviation float64) {
	return mu*p.scale + 1500.0, phi * p.scale
}

// impact is the damping factor g(phi): it shrinks toward zero as the
// opponent's deviation grows, reducing the influence of an opponent whose
// true strength is poorly known. g(0) == 1.
func impact(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/(math.Pi*math.Pi))
}

// expected is the modeled win probability E for a player at mu against an
// opponent at (muJ, phiJ). The logistic saturates toward 0 or 1 for large
// rating gaps without overflowing, and stays strictly inside (0,1).
func expected(mu, muJ, phiJ float64) float64 {
	return 1.0 / (1.0 + math.Exp(-impact(phiJ)*(mu-muJ)))
}

// estimate aggregates a single opponent's contribution: the estimated
// variance of the player's rating based on the outcome, and the estimated
// rating change delta.
type estimate struct {
	g        float64 // impact of the opponent
	e        float64 // expected score against the opponent
	variance float64 // v, estimated variance
	delta    float64 // estimated rating improvement
}

// aggregate combines the expected and actual outcome against one opponent.
// Callers with no opponent in the cycle must take the idle path instead;
// with zero outcome terms the variance inverse would be undefined.
func aggregate(mu, muJ, phiJ, score float64) estimate {
	g := impact(phiJ)
	e := expected(mu, muJ, phiJ)
	varianceInv := g * g * e * (1 - e)
	variance := 1.0 / varianceInv
	return estimate{
		g:        g,
		e:        e,
		variance: variance,
		delta:    variance * g * (score - e),
	}
}
