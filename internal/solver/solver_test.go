package solver_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janrosa1/DemARK/internal/consumer"
	"github.com/janrosa1/DemARK/internal/solver"
)

func baseParams() consumer.Params {
	return consumer.Params{
		CRRA:       2.0,
		Rfree:      1.03,
		DiscFac:    0.96,
		LivPrb:     []float64{0.98},
		PermGroFac: []float64{1.01},
		TCycle:     1,
		Cycles:     0,
	}
}

func TestTerminalSolution(t *testing.T) {
	sol, err := solver.SolveBackward(nil, 2.0, 1.03, 0.96, 0.98, 1.01)
	require.NoError(t, err)

	assert.Equal(t, 1.0, sol.MPCMin)
	assert.Equal(t, 1.0, sol.MPCMax)
	assert.Equal(t, 0.0, sol.MNrmMin)

	// Terminal consumer spends everything: c(m) = m.
	assert.Equal(t, 2.5, sol.Consumption(2.5))
	assert.Equal(t, 0.1, sol.Consumption(0.1))
}

func TestOneBackwardStep(t *testing.T) {
	terminal, err := solver.SolveBackward(nil, 2.0, 1.03, 0.96, 0.98, 1.01)
	require.NoError(t, err)

	sol, err := solver.SolveBackward(terminal, 2.0, 1.03, 0.96, 0.98, 1.01)
	require.NoError(t, err)

	patFac := math.Pow(1.03*0.96*0.98, 1.0/2.0) / 1.03
	assert.InDelta(t, 1.0/(1.0+patFac), sol.MPCMin, 1e-15)
	assert.InDelta(t, 1.01/1.03, sol.HNrm, 1e-15)
	assert.InDelta(t, -1.01/1.03, sol.MNrmMin, 1e-15)
	assert.Equal(t, sol.MPCMin, sol.MPCMax)
}

func TestBackwardRejectsBadScalars(t *testing.T) {
	cases := []struct {
		name                               string
		crra, rfree, discFac, livPrb, grow float64
	}{
		{"non-positive CRRA", 0, 1.03, 0.96, 0.98, 1.01},
		{"non-positive Rfree", 2, -1, 0.96, 0.98, 1.01},
		{"non-positive DiscFac", 2, 1.03, 0, 0.98, 1.01},
		{"DiscFac above one", 2, 1.03, 1.2, 0.98, 1.01},
		{"LivPrb above one", 2, 1.03, 0.96, 1.01, 1.01},
		{"zero LivPrb", 2, 1.03, 0.96, 0, 1.01},
		{"non-positive growth", 2, 1.03, 0.96, 0.98, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := solver.SolveBackward(nil, tc.crra, tc.rfree, tc.discFac, tc.livPrb, tc.grow)
			require.Error(t, err)
			assert.ErrorIs(t, err, consumer.ErrInvalidParameter)
		})
	}
}

func TestInfiniteHorizonConvergence(t *testing.T) {
	p := baseParams()
	sols, sum, err := solver.Solve(p)
	require.NoError(t, err)
	require.Len(t, sols, 1)

	sol := sols[0]

	// Fixed point of the MPC recursion is 1 − κ with κ the patience factor.
	patFac := math.Pow(p.Rfree*p.DiscFac*p.LivPrb[0], 1.0/p.CRRA) / p.Rfree
	assert.InDelta(t, 1.0-patFac, sol.MPCMin, 1e-8)
	assert.Greater(t, sol.MPCMin, 0.0)
	assert.Less(t, sol.MPCMin, 1.0)
	assert.Equal(t, sol.MPCMin, sol.MPCMax)

	// Borrowing limit is minus the fixed point of the human wealth
	// recursion: h = (Γ/R)/(1 − Γ/R).
	gr := p.PermGroFac[0] / p.Rfree
	assert.InDelta(t, -gr/(1.0-gr), sol.MNrmMin, 1e-6)
	assert.Less(t, sol.MNrmMin, 0.0)
	assert.False(t, math.IsInf(sol.MNrmMin, 0))

	assert.Equal(t, "infinite", sum.Horizon)
	assert.Greater(t, sum.Iterations, 1)
	assert.Equal(t, sol.MPCMin, sum.MPCMin)
}

func TestConsumptionLinearity(t *testing.T) {
	sols, _, err := solver.Solve(baseParams())
	require.NoError(t, err)
	sol := sols[0]

	points := []struct{ m1, m2 float64 }{
		{-40.0, 10.0},
		{0.0, 1.0},
		{2.5, 100.0},
		{-50.0, -49.0},
	}
	for _, pt := range points {
		for _, lam := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
			mixed := sol.Consumption(lam*pt.m1 + (1-lam)*pt.m2)
			split := lam*sol.Consumption(pt.m1) + (1-lam)*sol.Consumption(pt.m2)
			assert.InDelta(t, split, mixed, 1e-12,
				"m1=%v m2=%v lambda=%v", pt.m1, pt.m2, lam)
		}
	}
}

func TestEnvelopeIdentity(t *testing.T) {
	p := baseParams()
	sols, _, err := solver.Solve(p)
	require.NoError(t, err)
	sol := sols[0]

	for m := sol.MNrmMin + 0.5; m < sol.MNrmMin+60; m += 1.375 {
		c := sol.Consumption(m)
		assert.InDelta(t, math.Pow(c, -p.CRRA), sol.MarginalValue(m), 1e-10)
	}
}

func TestValueFunctionDerivative(t *testing.T) {
	sols, _, err := solver.Solve(baseParams())
	require.NoError(t, err)
	sol := sols[0]

	// v'(m) must match the numerical derivative of v(m).
	const h = 1e-6
	for _, m := range []float64{sol.MNrmMin + 1, sol.MNrmMin + 5, 0.0, 10.0} {
		numeric := (sol.Value(m+h) - sol.Value(m-h)) / (2 * h)
		assert.InEpsilon(t, sol.MarginalValue(m), numeric, 1e-4, "m=%v", m)
	}
}

func TestLifeCycleSolve(t *testing.T) {
	p := consumer.Params{
		CRRA:       2.0,
		Rfree:      1.03,
		DiscFac:    0.96,
		LivPrb:     []float64{0.99, 0.95},
		PermGroFac: []float64{1.02, 1.00},
		TCycle:     2,
		Cycles:     3,
	}
	sols, sum, err := solver.Solve(p)
	require.NoError(t, err)
	require.Len(t, sols, 7) // TCycle·Cycles backward steps plus the terminal period

	// Terminal period consumes everything.
	last := sols[len(sols)-1]
	assert.Equal(t, 1.0, last.MPCMin)
	assert.Equal(t, 0.0, last.MNrmMin)

	// More periods of remaining life mean a lower MPC and a looser limit.
	for i := 0; i < len(sols)-1; i++ {
		assert.Less(t, sols[i].MPCMin, sols[i+1].MPCMin, "period %d", i)
		assert.LessOrEqual(t, sols[i].MNrmMin, 0.0)
	}

	assert.Equal(t, "life-cycle", sum.Horizon)
	assert.Equal(t, 6, sum.Iterations)
}

func TestNonConvergenceWhenGrowthDominatesReturn(t *testing.T) {
	p := baseParams()
	p.PermGroFac = []float64{1.2} // Γ > R: human wealth has no finite limit

	_, _, err := solver.Solve(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, solver.ErrNonConvergence)
}

func TestNonConvergenceWhenReturnImpatienceViolated(t *testing.T) {
	p := baseParams()
	p.CRRA = 0.2
	p.DiscFac = 1.0
	p.LivPrb = []float64{1.0}
	p.PermGroFac = []float64{1.0}

	_, _, err := solver.Solve(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, solver.ErrNonConvergence)
}

func TestSolveRejectsLogUtility(t *testing.T) {
	p := baseParams()
	p.CRRA = 1.0

	_, _, err := solver.Solve(p)
	require.Error(t, err)
	assert.ErrorIs(t, err, consumer.ErrInvalidParameter)
}

func TestEvalGrid(t *testing.T) {
	xs, ys := solver.EvalGrid(func(x float64) float64 { return 2 * x }, 0, 1, 5)
	require.Len(t, xs, 5)
	require.Len(t, ys, 5)
	assert.Equal(t, 0.0, xs[0])
	assert.Equal(t, 1.0, xs[4])
	assert.InDelta(t, 0.5, xs[2], 1e-15)
	assert.InDelta(t, 1.0, ys[2], 1e-15)
}
