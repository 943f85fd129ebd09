package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db, zerolog.Nop())
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.Migrate())

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestFetchRun_Lifecycle(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartFetchRun("EAST_SEA", "api")
	require.NoError(t, err)
	require.NotZero(t, run.ID)

	run.Success = false
	run.ErrorKind = sql.NullString{String: "no_data", Valid: true}
	run.ErrorSource = sql.NullString{String: "salinity", Valid: true}
	run.ErrorMessage = sql.NullString{String: "salinity: no data: no sss data returned", Valid: true}
	require.NoError(t, store.CompleteFetchRun(run))
	assert.True(t, run.FinishedAt.Valid)
	assert.True(t, run.DurationMs.Valid)

	ok, err := store.StartFetchRun("EAST_SEA", "probe")
	require.NoError(t, err)
	ok.Success = true
	require.NoError(t, store.CompleteFetchRun(ok))

	errs, err := store.GetRecentFetchErrors(10)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "EAST_SEA", errs[0].Region)
	assert.Equal(t, "no_data", errs[0].ErrorKind.String)
	assert.Equal(t, "salinity", errs[0].ErrorSource.String)

	health, err := store.GetFetchHealth(1)
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, 2, health[0].TotalRuns)
	assert.Equal(t, 1, health[0].SuccessRuns)
	assert.Equal(t, 1, health[0].FailedRuns)
}

func TestFetchHealth_CanceledRunsAreNotFailures(t *testing.T) {
	store := setupTestStore(t)

	run, err := store.StartFetchRun("SOUTH_SEA", "api")
	require.NoError(t, err)
	run.ErrorKind = sql.NullString{String: "canceled", Valid: true}
	run.ErrorMessage = sql.NullString{String: "context canceled", Valid: true}
	require.NoError(t, store.CompleteFetchRun(run))

	health, err := store.GetFetchHealth(1)
	require.NoError(t, err)
	require.Len(t, health, 1)
	assert.Equal(t, 1, health[0].TotalRuns)
	assert.Equal(t, 0, health[0].FailedRuns)
	assert.Equal(t, 1, health[0].CanceledRuns)

	errs, err := store.GetRecentFetchErrors(10)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestPing(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, store.db.Close())
	assert.Error(t, store.Ping(context.Background()))
}

func TestCompleteFetchRun_Nil(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.CompleteFetchRun(nil))
}

func TestAnalyses(t *testing.T) {
	store := setupTestStore(t)

	latest, err := store.GetLatestAnalysis("EAST_SEA")
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertAnalysis(Analysis{ID: "a1", Region: "EAST_SEA", CreatedAt: base, Model: "m", Body: "first"}))
	require.NoError(t, store.InsertAnalysis(Analysis{ID: "a2", Region: "EAST_SEA", CreatedAt: base.Add(time.Hour), Model: "m", Body: "second", Snapshot: `{"temperature":18.2}`}))
	require.NoError(t, store.InsertAnalysis(Analysis{ID: "b1", Region: "WEST_SEA", CreatedAt: base, Model: "m", Body: "west"}))

	latest, err = store.GetLatestAnalysis("EAST_SEA")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "a2", latest.ID)
	assert.Equal(t, `{"temperature":18.2}`, latest.Snapshot)

	east, err := store.ListAnalyses("EAST_SEA", 10)
	require.NoError(t, err)
	assert.Len(t, east, 2)

	all, err := store.ListAnalyses("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
