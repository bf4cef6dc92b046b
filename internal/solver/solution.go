// Package solver computes closed-form solutions to the perfect-foresight
// consumption-saving problem, one period at a time by backward recursion.
// Every period solution is linear in normalized market resources, so a
// solution is a handful of floats plus pure evaluation methods.
// See design doc Section 3.
package solver

import "math"

// Solution is one period's solution in normalized (permanent-income-deflated)
// terms. Immutable once produced.
type Solution struct {
	// MPCMin is the marginal propensity to consume. The consumption
	// function is globally linear, so MPCMin = MPCMax everywhere except
	// in name: both limiting MPCs are part of the solution contract.
	MPCMin float64
	MPCMax float64

	// MNrmMin is the natural borrowing limit: the lowest attainable level
	// of normalized market resources, equal to minus human wealth.
	MNrmMin float64

	// HNrm is normalized human wealth, the present discounted value of
	// future labor income.
	HNrm float64

	// CRRA is carried so the value functions can be evaluated without
	// re-threading parameters.
	CRRA float64
}

// Terminal returns the last-period solution: consume everything, c(m) = m.
func Terminal(crra float64) *Solution {
	return &Solution{
		MPCMin:  1.0,
		MPCMax:  1.0,
		MNrmMin: 0.0,
		HNrm:    0.0,
		CRRA:    crra,
	}
}

// Consumption evaluates the normalized consumption function
// c(m) = MPCMin·(m − MNrmMin). Defined for m ≥ MNrmMin.
func (s *Solution) Consumption(m float64) float64 {
	return s.MPCMin * (m - s.MNrmMin)
}

// MarginalValue evaluates v'(m). The envelope condition holds exactly for
// the closed-form solution, so v'(m) = c(m)^(−ρ).
func (s *Solution) MarginalValue(m float64) float64 {
	return math.Pow(s.Consumption(m), -s.CRRA)
}

// Value evaluates the normalized value function. The value function
// composed with the inverse CRRA utility is linear with slope
// MPCMin^(−ρ/(1−ρ)), which gives the exact closed form below.
// Undefined for CRRA = 1; Solve rejects that case up front.
func (s *Solution) Value(m float64) float64 {
	slope := math.Pow(s.MPCMin, -s.CRRA/(1.0-s.CRRA))
	return utility(slope*(m-s.MNrmMin), s.CRRA)
}

// utility is CRRA utility u(c) = c^(1−ρ)/(1−ρ).
func utility(c, crra float64) float64 {
	return math.Pow(c, 1.0-crra) / (1.0 - crra)
}

// EvalGrid evaluates fn at n evenly spaced points on [lo, hi] and returns
// the abscissae and values. Pure; used by reporting collaborators to
// tabulate consumption and value functions.
func EvalGrid(fn func(float64) float64, lo, hi float64, n int) ([]float64, []float64) {
	if n < 2 {
		n = 2
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range xs {
		xs[i] = lo + float64(i)*step
		ys[i] = fn(xs[i])
	}
	return xs, ys
}
