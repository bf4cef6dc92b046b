// Package persistence provides SQLite-based storage for solved and
// simulated runs: the scenario snapshot, the solver summary, and the
// per-variable history tables.
// See design doc Section 6.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/janrosa1/DemARK/internal/simulate"
	"github.com/janrosa1/DemARK/internal/solver"
)

// ErrNotFound reports a run id with no stored row.
var ErrNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		scenario_json TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		stats_json TEXT NOT NULL,
		periods INTEGER NOT NULL,
		agents INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		run_id TEXT NOT NULL,
		period INTEGER NOT NULL,
		variable TEXT NOT NULL,
		values_json TEXT NOT NULL,
		PRIMARY KEY (run_id, period, variable)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_run ON history(run_id, variable);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunInfo is the stored metadata of one run.
type RunInfo struct {
	ID        string          `db:"id" json:"id"`
	CreatedAt string          `db:"created_at" json:"created_at"`
	Scenario  json.RawMessage `db:"scenario_json" json:"scenario"`
	Summary   json.RawMessage `db:"summary_json" json:"summary"`
	Stats     json.RawMessage `db:"stats_json" json:"stats"`
	Periods   int             `db:"periods" json:"periods"`
	Agents    int             `db:"agents" json:"agents"`
}

// SaveRun stores a completed run and returns its generated id.
// The scenario snapshot is stored verbatim; the history is written one row
// per (period, variable) with the cross-section as a JSON array.
func (db *DB) SaveRun(scenarioJSON []byte, sum *solver.Summary, h *simulate.History) (string, error) {
	id := uuid.NewString()

	summaryJSON, err := json.Marshal(sum)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	statsJSON, err := json.Marshal(h.Stats)
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, created_at, scenario_json, summary_json, stats_json, periods, agents)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339),
		string(scenarioJSON), string(summaryJSON), string(statsJSON),
		h.Periods, h.Agents,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO history (run_id, period, variable, values_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for name, table := range h.Series {
		for t, row := range table {
			rowJSON, err := json.Marshal(row)
			if err != nil {
				return "", fmt.Errorf("marshal %s period %d: %w", name, t, err)
			}
			if _, err := stmt.Exec(id, t, name, string(rowJSON)); err != nil {
				return "", fmt.Errorf("insert %s period %d: %w", name, t, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	if err := db.SetMeta("last_run_id", id); err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns metadata for all stored runs, newest first.
func (db *DB) ListRuns() ([]RunInfo, error) {
	var runs []RunInfo
	err := db.conn.Select(&runs, `SELECT id, created_at, scenario_json, summary_json, stats_json, periods, agents
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the metadata of one run.
func (db *DB) GetRun(id string) (*RunInfo, error) {
	var run RunInfo
	err := db.conn.Get(&run, `SELECT id, created_at, scenario_json, summary_json, stats_json, periods, agents
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// LoadSeries returns one variable's [periods × agents] table for a run.
func (db *DB) LoadSeries(runID, variable string) ([][]float64, error) {
	rows, err := db.conn.Query(`SELECT period, values_json FROM history
		WHERE run_id = ? AND variable = ? ORDER BY period`, runID, variable)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	var table [][]float64
	for rows.Next() {
		var period int
		var valuesJSON string
		if err := rows.Scan(&period, &valuesJSON); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		var values []float64
		if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
			return nil, fmt.Errorf("decode series period %d: %w", period, err)
		}
		table = append(table, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, runID, variable)
	}
	return table, nil
}

// SetMeta stores a key/value pair in the meta table.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetMeta retrieves a value from the meta table.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, `SELECT value FROM meta WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: meta key %s", ErrNotFound, key)
	}
	return value, err
}
