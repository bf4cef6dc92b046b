// Package consumer defines the perfect-foresight consumption-saving model:
// an agent with CRRA utility, a riskless return, known permanent income
// growth, and per-period survival probabilities.
// See design doc Section 3.
package consumer

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter reports a model parameter outside its valid range.
// Raised eagerly at construction or solve time, never deferred.
var ErrInvalidParameter = errors.New("invalid parameter")

// Params holds the immutable parameters of one consumer type.
// LivPrb and PermGroFac are time-varying over one cycle of TCycle periods;
// everything else is constant.
type Params struct {
	CRRA    float64 // Relative risk aversion ρ > 0
	Rfree   float64 // Riskless gross return factor R > 1
	DiscFac float64 // Time discount factor β ∈ (0, 1]

	LivPrb     []float64 // Survival probability per period in the cycle, each ∈ (0, 1]
	PermGroFac []float64 // Permanent income growth factor per period, each > 0

	TCycle int // Periods per cycle, ≥ 1
	Cycles int // Cycle repetitions; 0 means infinite horizon

	// PermGroFacAgg is an aggregate productivity growth factor applied
	// uniformly on top of PermGroFac each period. Defaults to 1.0.
	PermGroFacAgg float64
}

// WithDefaults returns a copy with zero-valued optional fields filled in.
func (p Params) WithDefaults() Params {
	if p.PermGroFacAgg == 0 {
		p.PermGroFacAgg = 1.0
	}
	return p
}

// Validate checks every field against its documented range.
// Returns an error wrapping ErrInvalidParameter on the first violation.
func (p Params) Validate() error {
	if !(p.CRRA > 0) || math.IsInf(p.CRRA, 0) {
		return fmt.Errorf("%w: CRRA must be positive and finite, got %v", ErrInvalidParameter, p.CRRA)
	}
	if !(p.Rfree > 0) || math.IsInf(p.Rfree, 0) {
		return fmt.Errorf("%w: Rfree must be positive and finite, got %v", ErrInvalidParameter, p.Rfree)
	}
	if !(p.DiscFac > 0) || p.DiscFac > 1 {
		return fmt.Errorf("%w: DiscFac must be in (0, 1], got %v", ErrInvalidParameter, p.DiscFac)
	}
	if p.TCycle < 1 {
		return fmt.Errorf("%w: TCycle must be at least 1, got %d", ErrInvalidParameter, p.TCycle)
	}
	if p.Cycles < 0 {
		return fmt.Errorf("%w: Cycles must be non-negative, got %d", ErrInvalidParameter, p.Cycles)
	}
	if len(p.LivPrb) != p.TCycle {
		return fmt.Errorf("%w: LivPrb has length %d, want TCycle=%d", ErrInvalidParameter, len(p.LivPrb), p.TCycle)
	}
	if len(p.PermGroFac) != p.TCycle {
		return fmt.Errorf("%w: PermGroFac has length %d, want TCycle=%d", ErrInvalidParameter, len(p.PermGroFac), p.TCycle)
	}
	for t, s := range p.LivPrb {
		if !(s > 0) || s > 1 {
			return fmt.Errorf("%w: LivPrb[%d] must be in (0, 1], got %v", ErrInvalidParameter, t, s)
		}
	}
	for t, g := range p.PermGroFac {
		if !(g > 0) || math.IsInf(g, 0) {
			return fmt.Errorf("%w: PermGroFac[%d] must be positive and finite, got %v", ErrInvalidParameter, t, g)
		}
	}
	if !(p.PermGroFacAgg > 0) || math.IsInf(p.PermGroFacAgg, 0) {
		return fmt.Errorf("%w: PermGroFacAgg must be positive and finite, got %v", ErrInvalidParameter, p.PermGroFacAgg)
	}
	return nil
}

// InfiniteHorizon reports whether the cycle repeats forever.
func (p Params) InfiniteHorizon() bool {
	return p.Cycles == 0
}

// GroFac returns the effective permanent income growth factor for the
// given period within the cycle, including the aggregate component.
func (p Params) GroFac(t int) float64 {
	return p.PermGroFac[t%p.TCycle] * p.PermGroFacAgg
}
