package solver

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/janrosa1/DemARK/internal/consumer"
)

// ErrNonConvergence reports that the infinite-horizon fixed point failed to
// stabilize, or reached a degenerate iterate. The error message carries the
// last iterate as a diagnostic.
var ErrNonConvergence = errors.New("solver did not converge")

const (
	// fixedPointTol bounds the change in MPCMin and MNrmMin between
	// successive cycles at the converged fixed point.
	fixedPointTol = 1e-10

	// maxCycles is the numerical safeguard on fixed-point iteration.
	maxCycles = 10000

	// degenerateMPC marks a fixed point driven to zero consumption,
	// which happens when the return impatience condition is violated.
	degenerateMPC = 1e-9
)

// Summary describes a completed solve for logging, persistence, and the API.
type Summary struct {
	MPCMin     float64 `json:"mpc_min"`
	MNrmMin    float64 `json:"m_nrm_min"`
	HNrm       float64 `json:"h_nrm"`
	Iterations int     `json:"iterations"`
	Horizon    string  `json:"horizon"` // "infinite" or "life-cycle"
}

// SolveBackward computes this period's solution from the next period's.
// A nil next solution denotes the terminal period, where the consumer
// spends all resources.
//
// The patience factor κ = (R·β·LivPrb)^(1/ρ)/R drives the MPC recursion
// MPCMin_t = 1/(1 + κ/MPCMin_{t+1}); human wealth accumulates one more
// period of income discounted by the growth-adjusted return.
func SolveBackward(next *Solution, crra, rfree, discFac, livPrb, permGroFac float64) (*Solution, error) {
	if err := checkScalars(crra, rfree, discFac, livPrb, permGroFac); err != nil {
		return nil, err
	}
	if next == nil {
		return Terminal(crra), nil
	}

	discFacEff := discFac * livPrb
	patFac := math.Pow(rfree*discFacEff, 1.0/crra) / rfree

	mpc := 1.0 / (1.0 + patFac/next.MPCMin)
	hNrm := (permGroFac / rfree) * (next.HNrm + 1.0)

	return &Solution{
		MPCMin:  mpc,
		MPCMax:  mpc,
		MNrmMin: -hNrm,
		HNrm:    hNrm,
		CRRA:    crra,
	}, nil
}

// Solve produces the full time-indexed sequence of period solutions for the
// given parameters. Life-cycle mode (Cycles ≥ 1) runs exactly
// TCycle·Cycles backward steps from the terminal solution and returns them
// time-ordered with the terminal solution last. Infinite-horizon mode
// (Cycles == 0) iterates whole cycles to a fixed point and returns the
// converged cycle, length TCycle.
func Solve(p consumer.Params) ([]*Solution, *Summary, error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if p.CRRA == 1 {
		// The closed-form value representation is singular at log utility.
		return nil, nil, fmt.Errorf("%w: CRRA = 1 is not supported by the closed-form value function",
			consumer.ErrInvalidParameter)
	}

	if p.InfiniteHorizon() {
		return solveInfinite(p)
	}
	return solveLifeCycle(p)
}

func solveLifeCycle(p consumer.Params) ([]*Solution, *Summary, error) {
	n := p.TCycle * p.Cycles
	sols := make([]*Solution, n+1)
	sols[n] = Terminal(p.CRRA)

	for t := n - 1; t >= 0; t-- {
		ct := t % p.TCycle
		sol, err := SolveBackward(sols[t+1], p.CRRA, p.Rfree, p.DiscFac, p.LivPrb[ct], p.PermGroFac[ct])
		if err != nil {
			return nil, nil, err
		}
		sols[t] = sol
	}

	sum := &Summary{
		MPCMin:     sols[0].MPCMin,
		MNrmMin:    sols[0].MNrmMin,
		HNrm:       sols[0].HNrm,
		Iterations: n,
		Horizon:    "life-cycle",
	}
	slog.Info("life-cycle solve finished",
		"periods", n,
		"mpc_t0", sols[0].MPCMin,
		"m_min_t0", sols[0].MNrmMin,
	)
	return sols, sum, nil
}

// solveInfinite iterates the backward recursion over whole cycles until the
// cycle-head MPCMin and MNrmMin stop moving. The terminal condition of the
// stationary problem is a limit, not a single backward step, so one pass is
// never enough.
func solveInfinite(p consumer.Params) ([]*Solution, *Summary, error) {
	next := Terminal(p.CRRA)
	var cycle []*Solution
	prevMPC, prevMMin := math.NaN(), math.NaN()

	for iter := 1; iter <= maxCycles; iter++ {
		cycle = make([]*Solution, p.TCycle)
		for t := p.TCycle - 1; t >= 0; t-- {
			sol, err := SolveBackward(next, p.CRRA, p.Rfree, p.DiscFac, p.LivPrb[t], p.PermGroFac[t])
			if err != nil {
				return nil, nil, err
			}
			cycle[t] = sol
			next = sol
		}

		head := cycle[0]
		if !isFinite(head.MPCMin) || !isFinite(head.MNrmMin) {
			return nil, nil, fmt.Errorf("%w: iterate became non-finite after %d cycles (mpc=%v, m_min=%v)",
				ErrNonConvergence, iter, head.MPCMin, head.MNrmMin)
		}

		if math.Abs(head.MPCMin-prevMPC) < fixedPointTol &&
			math.Abs(head.MNrmMin-prevMMin) < fixedPointTol {
			if head.MPCMin < degenerateMPC {
				return nil, nil, fmt.Errorf("%w: fixed point is degenerate, mpc=%v (return impatience condition violated)",
					ErrNonConvergence, head.MPCMin)
			}
			sum := &Summary{
				MPCMin:     head.MPCMin,
				MNrmMin:    head.MNrmMin,
				HNrm:       head.HNrm,
				Iterations: iter,
				Horizon:    "infinite",
			}
			slog.Info("infinite-horizon solve converged",
				"cycles", iter,
				"mpc", head.MPCMin,
				"m_min", head.MNrmMin,
				"h_nrm", head.HNrm,
			)
			return cycle, sum, nil
		}
		prevMPC, prevMMin = head.MPCMin, head.MNrmMin
	}

	last := cycle[0]
	return nil, nil, fmt.Errorf("%w: no fixed point within %d cycles, last iterate mpc=%v m_min=%v",
		ErrNonConvergence, maxCycles, last.MPCMin, last.MNrmMin)
}

func checkScalars(crra, rfree, discFac, livPrb, permGroFac float64) error {
	switch {
	case !(crra > 0) || math.IsInf(crra, 0):
		return fmt.Errorf("%w: CRRA must be positive and finite, got %v", consumer.ErrInvalidParameter, crra)
	case !(rfree > 0) || math.IsInf(rfree, 0):
		return fmt.Errorf("%w: Rfree must be positive and finite, got %v", consumer.ErrInvalidParameter, rfree)
	case !(discFac > 0) || discFac > 1:
		return fmt.Errorf("%w: DiscFac must be in (0, 1], got %v", consumer.ErrInvalidParameter, discFac)
	case !(livPrb > 0) || livPrb > 1:
		return fmt.Errorf("%w: LivPrb must be in (0, 1], got %v", consumer.ErrInvalidParameter, livPrb)
	case !(permGroFac > 0) || math.IsInf(permGroFac, 0):
		return fmt.Errorf("%w: PermGroFac must be positive and finite, got %v", consumer.ErrInvalidParameter, permGroFac)
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
