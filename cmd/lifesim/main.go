// Command lifesim solves a perfect-foresight consumption-saving scenario,
// simulates the agent cross-section forward, stores the run in SQLite, and
// optionally serves the results over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/janrosa1/DemARK/internal/api"
	"github.com/janrosa1/DemARK/internal/persistence"
	"github.com/janrosa1/DemARK/internal/scenario"
	"github.com/janrosa1/DemARK/internal/simulate"
	"github.com/janrosa1/DemARK/internal/solver"
)

// runtimeConfig holds process-level settings, all from the environment.
// Model and population parameters come from the scenario file instead.
type runtimeConfig struct {
	ScenarioPath string `env:"LIFESIM_SCENARIO"`
	DBPath       string `env:"LIFESIM_DB" envDefault:"data/lifesim.db"`
	ListenAddr   string `env:"LIFESIM_ADDR"` // Empty = exit after the run instead of serving
	LogLevel     string `env:"LIFESIM_LOG_LEVEL" envDefault:"info"`
	Seed         *int64 `env:"LIFESIM_SEED"` // Overrides the scenario seed when set
	Periods      int    `env:"LIFESIM_PERIODS"` // 0 = full scenario horizon
}

func main() {
	var cfg runtimeConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "bad environment:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// ── Scenario ──────────────────────────────────────────────────────
	sc := scenario.Default()
	if cfg.ScenarioPath != "" {
		var err error
		sc, err = scenario.Load(cfg.ScenarioPath)
		if err != nil {
			slog.Error("failed to load scenario", "path", cfg.ScenarioPath, "error", err)
			os.Exit(1)
		}
	}
	if cfg.Seed != nil {
		sc.Simulation.Seed = *cfg.Seed
	}
	slog.Info("scenario loaded",
		"name", sc.Name,
		"crra", sc.Model.CRRA,
		"rfree", sc.Model.Rfree,
		"disc_fac", sc.Model.DiscFac,
		"cycles", sc.Model.Cycles,
		"agents", sc.Simulation.AgentCount,
		"seed", sc.Simulation.Seed,
	)

	// ── Solve ─────────────────────────────────────────────────────────
	sols, summary, err := solver.Solve(sc.Params())
	if err != nil {
		slog.Error("solve failed", "error", err)
		os.Exit(1)
	}

	// ── Simulate ──────────────────────────────────────────────────────
	sim, err := simulate.New(sc.Params(), sc.SimConfig())
	if err != nil {
		slog.Error("bad simulation config", "error", err)
		os.Exit(1)
	}
	state := sim.Initialize()
	state, history, err := sim.Simulate(state, sols, cfg.Periods, sc.Simulation.TrackVars)
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	// ── Persist ───────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	scJSON, _ := json.Marshal(sc)
	runID, err := db.SaveRun(scJSON, summary, history)
	if err != nil {
		slog.Error("failed to save run", "error", err)
		os.Exit(1)
	}
	slog.Info("run saved", "id", runID, "db", cfg.DBPath)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		printBanner(sc, summary, history, runID)
	}

	// ── Serve ─────────────────────────────────────────────────────────
	if cfg.ListenAddr == "" {
		return
	}

	apiServer := &api.Server{
		DB:       db,
		Solution: sols[0],
		Summary:  summary,
		Addr:     cfg.ListenAddr,
	}
	apiServer.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}

func printBanner(sc *scenario.Scenario, summary *solver.Summary, history *simulate.History, runID string) {
	last := history.Stats[len(history.Stats)-1]
	fmt.Printf("\nScenario %q: %s agents over %s periods (%s horizon).\n",
		sc.Name,
		humanize.Comma(int64(history.Agents)),
		humanize.Comma(int64(history.Periods)),
		summary.Horizon,
	)
	fmt.Printf("MPC %.6f, borrowing limit m_min %.4f, human wealth %.4f.\n",
		summary.MPCMin, summary.MNrmMin, summary.HNrm)
	fmt.Printf("Final period: mean m %.4f, mean c %.4f, %d agents replaced.\n",
		last.MeanMNrm, last.MeanCNrm, last.Replacements)
	fmt.Printf("Run %s saved.\n", runID)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
