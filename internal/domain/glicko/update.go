package glicko

import (
	"fmt"
	"math"
)

// Update computes the new rating triple for a player after one contest
// against a single opponent. Both snapshots are the pre-match values;
// score is the player's outcome in [0,1] (1 win, 0 loss, 0.5 draw,
// intermediate values for continuous margins).
//
// The computation is deterministic and side-effect free. Hard input
// errors (ErrInvalidOutcome, ErrInvalidPriorState) never produce a
// result; budget exhaustion in the volatility solve produces a result
// with Converged set to false.
func (p Params) Update(prior, opponent Rating, score float64) (Result, error) {
	if score < 0 || score > 1 || math.IsNaN(score) {
		return Result{}, fmt.Errorf("score %g: %w", score, ErrInvalidOutcome)
	}
	if !prior.valid() {
		return Result{}, fmt.Errorf("player deviation=%g volatility=%g: %w",
			prior.Deviation, prior.Volatility, ErrInvalidPriorState)
	}
	if !opponent.valid() {
		return Result{}, fmt.Errorf("opponent deviation=%g volatility=%g: %w",
			opponent.Deviation, opponent.Volatility, ErrInvalidPriorState)
	}

	mu, phi := p.toInternal(prior.Rating, prior.Deviation)
	muJ, phiJ := p.toInternal(opponent.Rating, opponent.Deviation)

	est := aggregate(mu, muJ, phiJ, score)

	sigmaPrime, iterations, converged := p.solveVolatility(prior.Volatility, est.delta, phi, est.variance)

	// Projection: fold the new volatility into the pre-period deviation,
	// then shrink by the match information and move the mean.
	phiStar := math.Sqrt(phi*phi + sigmaPrime*sigmaPrime)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/est.variance)
	muNew := mu + phiNew*phiNew*est.g*(score-est.e)

	rating, deviation := p.toExternal(muNew, phiNew)
	return Result{
		Rating: Rating{
			Rating:     rating,
			Deviation:  deviation,
			Volatility: sigmaPrime,
		},
		Iterations: iterations,
		Converged:  converged,
	}, nil
}

// Idle applies the no-match (bye period) step: the rating and volatility
// are unchanged and the deviation grows to reflect rising uncertainty.
// The new deviation is never smaller than the old one.
func (p Params) Idle(prior Rating) (Rating, error) {
	if !prior.valid() {
		return Rating{}, fmt.Errorf("player deviation=%g volatility=%g: %w",
			prior.Deviation, prior.Volatility, ErrInvalidPriorState)
	}

	_, phi := p.toInternal(prior.Rating, prior.Deviation)
	phiStar := math.Sqrt(phi*phi + prior.Volatility*prior.Volatility)
	_, deviation := p.toExternal(0, phiStar)

	return Rating{
		Rating:     prior.Rating,
		Deviation:  deviation,
		Volatility: prior.Volatility,
	}, nil
}

// ExpectedScore exposes the opponent-damped win probability on the
// external scale, for consumers that want a pre-match forecast.
func (p Params) ExpectedScore(player, opponent Rating) float64 {
	mu, _ := p.toInternal(player.Rating, player.Deviation)
	muJ, phiJ := p.toInternal(opponent.Rating, opponent.Deviation)
	return expected(mu, muJ, phiJ)
}
