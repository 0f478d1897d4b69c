package glicko

import "math"

// volatilityFn is the function whose root is the new log-variance of
// volatility:
//
//	f(x) = e^x (delta^2 - phi^2 - v - e^x) / 2(phi^2 + v + e^x)^2 - (x-a)/tau^2
//
// where a = ln(sigma^2) is the current log-variance.
func (p Params) volatilityFn(x, a, delta, phi, variance float64) float64 {
	ex := math.Exp(x)
	d2 := delta * delta
	p2 := phi * phi
	denom := p2 + variance + ex
	return ex*(d2-p2-variance-ex)/(2*denom*denom) - (x-a)/(p.tau*p.tau)
}

// solveVolatility finds the new volatility sigma' consistent with the
// observed surprise delta, via Illinois-variant bracketed secant
// iteration. It returns the estimate, the number of secant steps taken,
// and whether the solve reached tolerance within the iteration budget;
// the estimate is still returned on failure so a rating period always
// terminates deterministically.
func (p Params) solveVolatility(sigma, delta, phi, variance float64) (float64, int, bool) {
	a := math.Log(sigma * sigma)

	// Bracket initialization. The upper endpoint is A = a; the lower
	// endpoint B is either the log of the excess surprise when it is
	// positive, or a stepped back by whole multiples of tau until f
	// changes sign.
	A := a
	var B float64
	if delta*delta > phi*phi+variance {
		B = math.Log(delta*delta - phi*phi - variance)
	} else {
		found := false
		for k := 1; k <= p.iterationBudget; k++ {
			B = a - float64(k)*p.tau
			if p.volatilityFn(B, a, delta, phi, variance) >= 0 {
				found = true
				break
			}
		}
		if !found {
			// Ill-posed bracket: keep the prior volatility rather
			// than iterate from a one-sided start.
			return sigma, 0, false
		}
	}

	fA := p.volatilityFn(A, a, delta, phi, variance)
	fB := p.volatilityFn(B, a, delta, phi, variance)

	// keptA tracks which endpoint survived the previous step so the
	// Illinois halving only kicks in when the same side is retained
	// twice in a row, preventing secant stalls.
	var keptA, keptB bool
	for i := 0; i < p.iterationBudget; i++ {
		if fB == fA {
			return math.Exp(A / 2), i, false
		}
		C := A + (A-B)*fA/(fB-fA)
		fC := p.volatilityFn(C, a, delta, phi, variance)
		if math.IsNaN(fC) || math.IsInf(fC, 0) {
			return math.Exp(A / 2), i + 1, false
		}
		if math.Abs(fC) < p.tolerance {
			return math.Exp(C / 2), i + 1, true
		}
		if fC*fA >= 0 {
			// C shares A's sign: replace A, retain B.
			A, fA = C, fC
			if keptB {
				fB /= 2
			}
			keptA, keptB = false, true
		} else {
			// C shares B's sign: replace B, retain A.
			B, fB = C, fC
			if keptA {
				fA /= 2
			}
			keptA, keptB = true, false
		}
	}

	// Budget reached: return the better bracket endpoint, flagged
	// low-confidence.
	if math.Abs(fA) <= math.Abs(fB) {
		return math.Exp(A / 2), p.iterationBudget, false
	}
	return math.Exp(B / 2), p.iterationBudget, false
}
