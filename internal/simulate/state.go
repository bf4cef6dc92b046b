// Package simulate advances a cross-section of perfect-foresight consumers
// through time, applying mortality and rebirth against a time-indexed
// sequence of period solutions.
// See design doc Section 5.
package simulate

import (
	"errors"
	"slices"
)

// ErrUninitialized reports Simulate or Step called on a state that was
// never initialized. The simulator never auto-initializes; this keeps
// pause → perturb → resume workflows explicit.
var ErrUninitialized = errors.New("simulation state not initialized")

// Tracked variable names accepted by Simulate.
const (
	VarMarketResources = "market_resources"
	VarConsumption     = "consumption"
	VarAssets          = "assets"
	VarPermIncome      = "perm_income"
)

// TrackableVars lists every valid tracked variable name in a fixed order.
var TrackableVars = []string{VarMarketResources, VarConsumption, VarAssets, VarPermIncome}

// State is one cross-section of agents at a point in simulated time. It is
// a value: Step and Simulate return fresh states with copied slices, and
// callers perturb it with pure transforms such as ShockAssets, never by
// mutating a live simulator object.
type State struct {
	Period int // Periods simulated so far

	ANrm []float64 // Normalized end-of-period assets
	MNrm []float64 // Normalized market resources this period
	CNrm []float64 // Normalized consumption this period
	PLvl []float64 // Permanent income level
	Age  []int     // Periods survived since (re)birth

	Initialized bool

	// lastReplacements counts agents replaced during the most recent Step.
	lastReplacements int
}

func newState(agents int) State {
	return State{
		ANrm: make([]float64, agents),
		MNrm: make([]float64, agents),
		CNrm: make([]float64, agents),
		PLvl: make([]float64, agents),
		Age:  make([]int, agents),
	}
}

func (st State) clone() State {
	out := st
	out.ANrm = slices.Clone(st.ANrm)
	out.MNrm = slices.Clone(st.MNrm)
	out.CNrm = slices.Clone(st.CNrm)
	out.PLvl = slices.Clone(st.PLvl)
	out.Age = slices.Clone(st.Age)
	return out
}

// ShockAssets returns a copy of the state with every agent's normalized
// assets shifted by delta. Agent identities, ages, and the simulator's
// random stream are untouched, so simulation can resume with continuity.
func ShockAssets(st State, delta float64) State {
	out := st.clone()
	for i := range out.ANrm {
		out.ANrm[i] += delta
	}
	return out
}

// History is a time-by-agent record of tracked variables, one
// [periods × agents] table per variable name.
type History struct {
	Periods int                    `json:"periods"`
	Agents  int                    `json:"agents"`
	Series  map[string][][]float64 `json:"series"`
	Stats   []Stats                `json:"stats"`
}

// Stats is one period's aggregate summary.
type Stats struct {
	Period       int     `json:"period"`
	MeanMNrm     float64 `json:"mean_m_nrm"`
	MeanCNrm     float64 `json:"mean_c_nrm"`
	MeanANrm     float64 `json:"mean_a_nrm"`
	Replacements int     `json:"replacements"`
}

func newHistory(periods, agents int, trackVars []string) *History {
	h := &History{
		Periods: periods,
		Agents:  agents,
		Series:  make(map[string][][]float64, len(trackVars)),
		Stats:   make([]Stats, 0, periods),
	}
	for _, name := range trackVars {
		table := make([][]float64, periods)
		for t := range table {
			table[t] = make([]float64, agents)
		}
		h.Series[name] = table
	}
	return h
}

func (h *History) record(row int, st State) {
	for name, table := range h.Series {
		switch name {
		case VarMarketResources:
			copy(table[row], st.MNrm)
		case VarConsumption:
			copy(table[row], st.CNrm)
		case VarAssets:
			copy(table[row], st.ANrm)
		case VarPermIncome:
			copy(table[row], st.PLvl)
		}
	}
}
