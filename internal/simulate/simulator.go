package simulate

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/janrosa1/DemARK/internal/consumer"
	"github.com/janrosa1/DemARK/internal/entropy"
	"github.com/janrosa1/DemARK/internal/solver"
)

// Config controls population size, initial distributions, and the horizon.
type Config struct {
	AgentCount int   // Number of agents in the cross-section, ≥ 1
	TSim       int   // Default simulation horizon in periods, ≥ 1
	Seed       int64 // Seed for the owned random stream

	ANrmInitMean float64 // Log-mean of initial normalized assets
	ANrmInitStd  float64 // Log-std of initial normalized assets, ≥ 0
	PLvlInitMean float64 // Log-mean of initial permanent income
	PLvlInitStd  float64 // Log-std of initial permanent income, ≥ 0

	// MaxAge forces replacement of any agent older than this many periods.
	// Zero disables the age limit.
	MaxAge int
}

// Validate checks the configuration eagerly.
func (c Config) Validate() error {
	switch {
	case c.AgentCount < 1:
		return fmt.Errorf("%w: AgentCount must be at least 1, got %d", consumer.ErrInvalidParameter, c.AgentCount)
	case c.TSim < 1:
		return fmt.Errorf("%w: TSim must be at least 1, got %d", consumer.ErrInvalidParameter, c.TSim)
	case c.ANrmInitStd < 0 || math.IsNaN(c.ANrmInitStd) || math.IsInf(c.ANrmInitStd, 0):
		return fmt.Errorf("%w: ANrmInitStd must be a non-negative finite value, got %v", consumer.ErrInvalidParameter, c.ANrmInitStd)
	case c.PLvlInitStd < 0 || math.IsNaN(c.PLvlInitStd) || math.IsInf(c.PLvlInitStd, 0):
		return fmt.Errorf("%w: PLvlInitStd must be a non-negative finite value, got %v", consumer.ErrInvalidParameter, c.PLvlInitStd)
	case c.MaxAge < 0:
		return fmt.Errorf("%w: MaxAge must be non-negative, got %d", consumer.ErrInvalidParameter, c.MaxAge)
	}
	return nil
}

// Simulator owns the random stream and advances population states. All
// stochastic draws (initialization, death, replacement) consume the one
// stream in agent-index order, so a seed determines every history bit.
type Simulator struct {
	params consumer.Params
	cfg    Config
	stream *entropy.Stream
}

// New creates a simulator for the given model parameters and population
// configuration, validating both eagerly.
func New(params consumer.Params, cfg Config) (*Simulator, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	return &Simulator{
		params: params,
		cfg:    cfg,
		stream: entropy.NewStream(cfg.Seed),
	}, nil
}

// Initialize draws every agent's starting assets and permanent income from
// independent log-normal distributions and sets all ages to zero.
func (s *Simulator) Initialize() State {
	st := newState(s.cfg.AgentCount)
	for i := 0; i < s.cfg.AgentCount; i++ {
		st.ANrm[i] = s.stream.LogNormal(s.cfg.ANrmInitMean, s.cfg.ANrmInitStd)
		st.PLvl[i] = s.stream.LogNormal(s.cfg.PLvlInitMean, s.cfg.PLvlInitStd)
	}
	st.Initialized = true
	slog.Info("population initialized",
		"agents", s.cfg.AgentCount,
		"seed", s.cfg.Seed,
	)
	return st
}

// Step advances the cross-section one period against the given period
// solution and returns the new state.
//
// The deterministic update runs first for every agent in index order:
// m = (R/Γ)·a + 1, c = c(m), a' = m − c, P' = P·Γ, age+1. The mortality
// pass then consumes exactly one uniform draw per agent, again in index
// order; a dead or over-age agent is replaced by fresh initial draws from
// the same ongoing stream with age reset to zero. The replaced agent's
// recorded m and c stay those of the decedent.
func (s *Simulator) Step(st State, sol *solver.Solution) (State, error) {
	if !st.Initialized {
		return State{}, fmt.Errorf("step: %w", ErrUninitialized)
	}

	t := st.Period
	gro := s.params.GroFac(t)
	dieProb := 1.0 - s.params.LivPrb[t%s.params.TCycle]

	next := st.clone()
	for i := range next.ANrm {
		m := (s.params.Rfree/gro)*st.ANrm[i] + 1.0
		c := sol.Consumption(m)
		next.MNrm[i] = m
		next.CNrm[i] = c
		next.ANrm[i] = m - c
		next.PLvl[i] = st.PLvl[i] * gro
		next.Age[i] = st.Age[i] + 1
	}

	replaced := 0
	for i := range next.ANrm {
		draw := s.stream.Float()
		overAge := s.cfg.MaxAge > 0 && next.Age[i] > s.cfg.MaxAge
		if draw < dieProb || overAge {
			next.ANrm[i] = s.stream.LogNormal(s.cfg.ANrmInitMean, s.cfg.ANrmInitStd)
			next.PLvl[i] = s.stream.LogNormal(s.cfg.PLvlInitMean, s.cfg.PLvlInitStd)
			next.Age[i] = 0
			replaced++
		}
	}

	next.Period = t + 1
	next.lastReplacements = replaced
	return next, nil
}

// Simulate advances Step for numPeriods periods, recording each tracked
// variable into a [numPeriods × agents] table. A numPeriods of zero or
// less means the remaining periods up to the configured horizon. The state
// must have been initialized; Simulate never re-initializes, so callers
// can pause, perturb the state, and resume on the same stream.
func (s *Simulator) Simulate(st State, sols []*solver.Solution, numPeriods int, trackVars []string) (State, *History, error) {
	if !st.Initialized {
		return State{}, nil, fmt.Errorf("simulate: %w", ErrUninitialized)
	}
	if len(sols) == 0 {
		return State{}, nil, fmt.Errorf("simulate: %w: empty solution sequence", consumer.ErrInvalidParameter)
	}
	for _, name := range trackVars {
		if !slices.Contains(TrackableVars, name) {
			return State{}, nil, fmt.Errorf("simulate: %w: unknown tracked variable %q", consumer.ErrInvalidParameter, name)
		}
	}
	if numPeriods <= 0 {
		numPeriods = s.cfg.TSim - st.Period
		if numPeriods <= 0 {
			return State{}, nil, fmt.Errorf("simulate: %w: no periods remain before the configured horizon TSim=%d",
				consumer.ErrInvalidParameter, s.cfg.TSim)
		}
	}

	h := newHistory(numPeriods, s.cfg.AgentCount, trackVars)
	cur := st
	for k := 0; k < numPeriods; k++ {
		sol := sols[cur.Period%len(sols)]
		var err error
		cur, err = s.Step(cur, sol)
		if err != nil {
			return State{}, nil, err
		}
		h.record(k, cur)
		h.Stats = append(h.Stats, Stats{
			Period:       cur.Period,
			MeanMNrm:     mean(cur.MNrm),
			MeanCNrm:     mean(cur.CNrm),
			MeanANrm:     mean(cur.ANrm),
			Replacements: cur.lastReplacements,
		})
	}

	slog.Info("simulation advanced",
		"periods", numPeriods,
		"through", cur.Period,
		"mean_m", h.Stats[len(h.Stats)-1].MeanMNrm,
	)
	return cur, h, nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
