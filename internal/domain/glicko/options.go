// Package glicko implements the Glicko-2 rating update as a pure
// computation library.
package glicko

// Option applies a configuration option to Params.
type Option func(*Params)

// WithScale overrides the external/internal scale conversion constant.
func WithScale(scale float64) Option {
	return func(p *Params) {
		if scale > 0 {
			p.scale = scale
		}
	}
}

// WithTau sets the long-run volatility-change damping parameter.
// Smaller values constrain volatility more tightly.
func WithTau(tau float64) Option {
	return func(p *Params) {
		if tau > 0 {
			p.tau = tau
		}
	}
}

// WithTolerance sets the convergence tolerance for the volatility solve.
func WithTolerance(tolerance float64) Option {
	return func(p *Params) {
		if tolerance > 0 {
			p.tolerance = tolerance
		}
	}
}

// WithIterationBudget caps the number of root-finder refinement steps.
// When the budget is reached before tolerance, the last estimate is
// returned flagged as low-confidence instead of failing.
func WithIterationBudget(budget int) Option {
	return func(p *Params) {
		if budget > 0 {
			p.iterationBudget = budget
		}
	}
}
