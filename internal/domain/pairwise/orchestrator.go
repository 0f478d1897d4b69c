// Package pairwise applies the rating engine to both participants of a
// completed match.
package pairwise

import (
	"fmt"

	"github.com/arenalab/skillrate/internal/domain/glicko"
	"github.com/arenalab/skillrate/internal/domain/model"
)

// Update is the terminal output of one pairwise rating pass: two new
// rating rows plus the immutable audit record.
type Update struct {
	PlayerA model.PlayerRatingUpdate
	PlayerB model.PlayerRatingUpdate
	History model.MatchHistoryRecord
}

// Orchestrator computes both sides of a match from a single consistent
// snapshot of pre-match state. It performs no I/O and no retries;
// persistence failures are the calling layer's concern.
type Orchestrator struct {
	params glicko.Params
}

// New creates an orchestrator around the given engine parameters.
func New(params glicko.Params) *Orchestrator {
	return &Orchestrator{params: params}
}

// Rate computes the post-match rating triples for both participants.
//
// Each side's update reads the other side's pre-match values
// exclusively; neither side ever observes the other's post-match result,
// so A's gain is measured against B's old strength and vice versa. On
// any hard input error neither side is updated.
func (o *Orchestrator) Rate(outcome model.MatchOutcome) (Update, error) {
	preA := toEngine(outcome.PlayerA.PreRating)
	preB := toEngine(outcome.PlayerB.PreRating)

	resA, err := o.params.Update(preA, preB, outcome.ScoreA)
	if err != nil {
		return Update{}, fmt.Errorf("match %s side A: %w", outcome.MatchID, err)
	}
	resB, err := o.params.Update(preB, preA, outcome.OutcomeForB())
	if err != nil {
		return Update{}, fmt.Errorf("match %s side B: %w", outcome.MatchID, err)
	}

	updA := toUpdate(outcome.PlayerA.PlayerID, resA)
	updB := toUpdate(outcome.PlayerB.PlayerID, resB)

	return Update{
		PlayerA: updA,
		PlayerB: updB,
		History: model.MatchHistoryRecord{
			MatchID:  outcome.MatchID,
			PlayedAt: outcome.PlayedAt,
			ScoreA:   outcome.ScoreA,
			ScoreB:   outcome.ScoreB,
			PlayerA: model.PlayerChange{
				PlayerID: outcome.PlayerA.PlayerID,
				Before:   outcome.PlayerA.PreRating,
				After:    updA.Row(),
			},
			PlayerB: model.PlayerChange{
				PlayerID: outcome.PlayerB.PlayerID,
				Before:   outcome.PlayerB.PreRating,
				After:    updB.Row(),
			},
		},
	}, nil
}

// Idle applies the bye-period step to a single player: deviation grows,
// rating and volatility stay put.
func (o *Orchestrator) Idle(prior model.PlayerRating) (model.PlayerRatingUpdate, error) {
	aged, err := o.params.Idle(toEngine(prior))
	if err != nil {
		return model.PlayerRatingUpdate{}, fmt.Errorf("player %s idle: %w", prior.PlayerID, err)
	}
	return model.PlayerRatingUpdate{
		PlayerID:   prior.PlayerID,
		Rating:     aged.Rating,
		Deviation:  aged.Deviation,
		Volatility: aged.Volatility,
		Converged:  true,
	}, nil
}

func toEngine(r model.PlayerRating) glicko.Rating {
	return glicko.Rating{
		Rating:     r.Rating,
		Deviation:  r.Deviation,
		Volatility: r.Volatility,
	}
}

func toUpdate(playerID string, res glicko.Result) model.PlayerRatingUpdate {
	return model.PlayerRatingUpdate{
		PlayerID:   playerID,
		Rating:     res.Rating.Rating,
		Deviation:  res.Rating.Deviation,
		Volatility: res.Rating.Volatility,
		Iterations: res.Iterations,
		Converged:  res.Converged,
	}
}
