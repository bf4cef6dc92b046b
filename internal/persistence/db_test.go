package persistence_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janrosa1/DemARK/internal/persistence"
	"github.com/janrosa1/DemARK/internal/simulate"
	"github.com/janrosa1/DemARK/internal/solver"
)

func openTestDB(t *testing.T) *persistence.DB {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleHistory() *simulate.History {
	return &simulate.History{
		Periods: 2,
		Agents:  3,
		Series: map[string][][]float64{
			simulate.VarMarketResources: {
				{1.0, 1.5, 0.25},
				{0.9, 1.4, 0.3},
			},
			simulate.VarConsumption: {
				{0.5, 0.6, 0.1},
				{0.45, 0.55, 0.12},
			},
		},
		Stats: []simulate.Stats{
			{Period: 1, MeanMNrm: 0.9166, MeanCNrm: 0.4, Replacements: 0},
			{Period: 2, MeanMNrm: 0.8666, MeanCNrm: 0.3733, Replacements: 1},
		},
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	db := openTestDB(t)

	sum := &solver.Summary{
		MPCMin:     0.044,
		MNrmMin:    -50.5,
		HNrm:       50.5,
		Iterations: 1200,
		Horizon:    "infinite",
	}
	h := sampleHistory()

	id, err := db.SaveRun([]byte(`{"name":"roundtrip"}`), sum, h)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	runs, err := db.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 2, runs[0].Periods)
	assert.Equal(t, 3, runs[0].Agents)

	run, err := db.GetRun(id)
	require.NoError(t, err)

	var storedSum solver.Summary
	require.NoError(t, json.Unmarshal(run.Summary, &storedSum))
	assert.Equal(t, *sum, storedSum)

	var storedStats []simulate.Stats
	require.NoError(t, json.Unmarshal(run.Stats, &storedStats))
	assert.Equal(t, h.Stats, storedStats)

	table, err := db.LoadSeries(id, simulate.VarMarketResources)
	require.NoError(t, err)
	assert.Equal(t, h.Series[simulate.VarMarketResources], table)

	last, err := db.GetMeta("last_run_id")
	require.NoError(t, err)
	assert.Equal(t, id, last)
}

func TestMultipleRuns(t *testing.T) {
	db := openTestDB(t)
	sum := &solver.Summary{Horizon: "infinite"}

	id1, err := db.SaveRun([]byte(`{}`), sum, sampleHistory())
	require.NoError(t, err)
	id2, err := db.SaveRun([]byte(`{}`), sum, sampleHistory())
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	runs, err := db.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	last, err := db.GetMeta("last_run_id")
	require.NoError(t, err)
	assert.Equal(t, id2, last)
}

func TestNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRun("no-such-run")
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = db.LoadSeries("no-such-run", simulate.VarAssets)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = db.GetMeta("no-such-key")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}
