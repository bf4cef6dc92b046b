// Package scenario loads model and simulation configuration from YAML
// files. Every recognized field is an explicit struct member validated
// eagerly at load time; there is no dynamic parameter dictionary.
// See design doc Section 8.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/janrosa1/DemARK/internal/consumer"
	"github.com/janrosa1/DemARK/internal/simulate"
)

// Scenario is one complete model + simulation configuration.
type Scenario struct {
	// Name labels the run in logs, storage, and the API.
	Name string `json:"name" yaml:"name"`

	Model      Model      `json:"model" yaml:"model"`
	Simulation Simulation `json:"simulation" yaml:"simulation"`
}

// Model holds the consumer's preference and environment parameters.
type Model struct {
	CRRA    float64 `json:"crra" yaml:"crra"`
	Rfree   float64 `json:"rfree" yaml:"rfree"`
	DiscFac float64 `json:"disc_fac" yaml:"disc_fac"`

	LivPrb     []float64 `json:"liv_prb" yaml:"liv_prb"`
	PermGroFac []float64 `json:"perm_gro_fac" yaml:"perm_gro_fac"`

	TCycle int `json:"t_cycle" yaml:"t_cycle"`
	Cycles int `json:"cycles" yaml:"cycles"`

	PermGroFacAgg float64 `json:"perm_gro_fac_agg,omitempty" yaml:"perm_gro_fac_agg,omitempty"`
}

// Simulation holds the population configuration.
type Simulation struct {
	AgentCount int   `json:"agent_count" yaml:"agent_count"`
	TSim       int   `json:"t_sim" yaml:"t_sim"`
	Seed       int64 `json:"seed" yaml:"seed"`

	ANrmInitMean float64 `json:"a_nrm_init_mean" yaml:"a_nrm_init_mean"`
	ANrmInitStd  float64 `json:"a_nrm_init_std" yaml:"a_nrm_init_std"`
	PLvlInitMean float64 `json:"p_lvl_init_mean" yaml:"p_lvl_init_mean"`
	PLvlInitStd  float64 `json:"p_lvl_init_std" yaml:"p_lvl_init_std"`

	MaxAge int `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	TrackVars []string `json:"track_vars" yaml:"track_vars"`
}

// Default returns the baseline scenario: an infinite-horizon consumer with
// modest growth and mortality, and a 10k-agent cross-section starting near
// zero assets.
func Default() *Scenario {
	return &Scenario{
		Name: "baseline",
		Model: Model{
			CRRA:          2.0,
			Rfree:         1.03,
			DiscFac:       0.96,
			LivPrb:        []float64{0.98},
			PermGroFac:    []float64{1.01},
			TCycle:        1,
			Cycles:        0,
			PermGroFacAgg: 1.0,
		},
		Simulation: Simulation{
			AgentCount:   10000,
			TSim:         120,
			Seed:         42,
			ANrmInitMean: -6.0,
			ANrmInitStd:  1.0,
			PLvlInitMean: 0.0,
			PLvlInitStd:  0.0,
			TrackVars:    []string{simulate.VarMarketResources, simulate.VarConsumption, simulate.VarAssets, simulate.VarPermIncome},
		},
	}
}

// Load reads a scenario from a YAML file, fills defaults for omitted
// fields, and validates the result.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	sc := Default()
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks the scenario against the model and simulation ranges.
func (s *Scenario) Validate() error {
	if err := s.Params().Validate(); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	if err := s.SimConfig().Validate(); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return nil
}

// Params converts the model section into consumer parameters.
func (s *Scenario) Params() consumer.Params {
	return consumer.Params{
		CRRA:          s.Model.CRRA,
		Rfree:         s.Model.Rfree,
		DiscFac:       s.Model.DiscFac,
		LivPrb:        s.Model.LivPrb,
		PermGroFac:    s.Model.PermGroFac,
		TCycle:        s.Model.TCycle,
		Cycles:        s.Model.Cycles,
		PermGroFacAgg: s.Model.PermGroFacAgg,
	}.WithDefaults()
}

// SimConfig converts the simulation section into a simulator configuration.
func (s *Scenario) SimConfig() simulate.Config {
	return simulate.Config{
		AgentCount:   s.Simulation.AgentCount,
		TSim:         s.Simulation.TSim,
		Seed:         s.Simulation.Seed,
		ANrmInitMean: s.Simulation.ANrmInitMean,
		ANrmInitStd:  s.Simulation.ANrmInitStd,
		PLvlInitMean: s.Simulation.PLvlInitMean,
		PLvlInitStd:  s.Simulation.PLvlInitStd,
		MaxAge:       s.Simulation.MaxAge,
	}
}
