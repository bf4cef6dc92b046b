// Package api provides the read-only HTTP surface over solved and
// simulated runs. External plotting and reporting collaborators consume
// the evaluable functions and the stored history tables from here;
// everything is GET, JSON, and side-effect free.
// See design doc Section 7.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/janrosa1/DemARK/internal/persistence"
	"github.com/janrosa1/DemARK/internal/simulate"
	"github.com/janrosa1/DemARK/internal/solver"
)

// Server serves run metadata, history tables, and solution functions.
type Server struct {
	DB       *persistence.DB
	Solution *solver.Solution // Converged period-0 solution of the latest solve
	Summary  *solver.Summary
	Addr     string
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	// Full cross-section payloads are large; keep them behind a limiter.
	seriesLimiter := NewRateLimiter(60, time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/run/", s.handleRunRoutes(seriesLimiter))
	mux.HandleFunc("/api/v1/solution", s.handleSolution)

	go func() {
		slog.Info("API listening", "addr", s.Addr)
		if err := http.ListenAndServe(s.Addr, mux); err != nil {
			slog.Error("API server stopped", "error", err)
		}
	}()
}

// handleStatus reports the latest solve summary and the last stored run id.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"summary": s.Summary,
	}
	if s.DB != nil {
		if id, err := s.DB.GetMeta("last_run_id"); err == nil {
			status["last_run_id"] = id
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no run storage configured", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.ListRuns()
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// handleRunRoutes dispatches /api/v1/run/{id} and /api/v1/run/{id}/series.
func (s *Server) handleRunRoutes(seriesLimiter *RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.DB == nil {
			http.Error(w, "no run storage configured", http.StatusServiceUnavailable)
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/run/")
		id, sub, _ := strings.Cut(rest, "/")
		if id == "" {
			http.Error(w, "missing run id", http.StatusBadRequest)
			return
		}

		switch sub {
		case "":
			s.handleRunDetail(w, r, id)
		case "series":
			RateLimitMiddleware(seriesLimiter, func(w http.ResponseWriter, r *http.Request) {
				s.handleRunSeries(w, r, id)
			})(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request, id string) {
	run, err := s.DB.GetRun(id)
	if errors.Is(err, persistence.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("get run failed", "run", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

// handleRunSeries returns one tracked variable's [periods × agents] table.
func (s *Server) handleRunSeries(w http.ResponseWriter, r *http.Request, id string) {
	variable := r.URL.Query().Get("var")
	if variable == "" {
		variable = simulate.VarMarketResources
	}

	table, err := s.DB.LoadSeries(id, variable)
	if errors.Is(err, persistence.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("load series failed", "run", id, "var", variable, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"run_id":   id,
		"variable": variable,
		"periods":  len(table),
		"values":   table,
	})
}

// handleSolution tabulates the converged consumption, value, or marginal
// value function over a resource grid for plotting collaborators.
// Query params: var (consumption|value|marginal_value), lo, hi, n.
func (s *Server) handleSolution(w http.ResponseWriter, r *http.Request) {
	if s.Solution == nil {
		http.Error(w, "no solution available", http.StatusServiceUnavailable)
		return
	}

	variable := r.URL.Query().Get("var")
	if variable == "" {
		variable = "consumption"
	}
	var fn func(float64) float64
	switch variable {
	case "consumption":
		fn = s.Solution.Consumption
	case "value":
		fn = s.Solution.Value
	case "marginal_value":
		fn = s.Solution.MarginalValue
	default:
		http.Error(w, fmt.Sprintf("unknown function %q", variable), http.StatusBadRequest)
		return
	}

	// Default grid starts just above the borrowing limit, where the value
	// functions diverge.
	lo := queryFloat(r, "lo", s.Solution.MNrmMin+1e-6)
	hi := queryFloat(r, "hi", s.Solution.MNrmMin+10.0)
	n := queryInt(r, "n", 101)
	if hi <= lo || n < 2 || n > 100000 {
		http.Error(w, "bad grid", http.StatusBadRequest)
		return
	}

	xs, ys := solver.EvalGrid(fn, lo, hi, n)
	writeJSON(w, map[string]any{
		"variable": variable,
		"m":        xs,
		"values":   ys,
		"mpc_min":  s.Solution.MPCMin,
		"m_min":    s.Solution.MNrmMin,
	})
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
