package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmesync/readmesync/internal/events"
	"github.com/readmesync/readmesync/internal/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &types.Run{ID: "run-1", Mode: types.RunModeCI, Head: "abc", StartedAt: start}
	require.NoError(t, store.StartRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunModeCI, got.Mode)
	assert.Nil(t, got.FinishedAt, "run is still in progress")
	assert.True(t, got.StartedAt.Equal(start))

	end := start.Add(2 * time.Second)
	run.Action = "regenerate"
	run.Reason = "source changed"
	run.Changed = true
	run.CommitHash = "def"
	run.Pushed = true
	run.FinishedAt = &end
	require.NoError(t, store.FinishRun(ctx, run))

	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "regenerate", got.Action)
	assert.Equal(t, "source changed", got.Reason)
	assert.True(t, got.Changed)
	assert.True(t, got.Pushed)
	assert.Equal(t, "def", got.CommitHash)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 2*time.Second, got.Duration())
	assert.True(t, got.Succeeded())
}

func TestStartRunValidates(t *testing.T) {
	store := setupTestDB(t)
	err := store.StartRun(context.Background(), &types.Run{ID: "x", Mode: "bogus", StartedAt: time.Now()})
	assert.Error(t, err)
}

func TestFinishUnknownRun(t *testing.T) {
	store := setupTestDB(t)
	err := store.FinishRun(context.Background(), &types.Run{ID: "missing"})
	assert.Error(t, err)
}

func TestGetUnknownRun(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListAndPruneRuns(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := &types.Run{
			ID:        fmt.Sprintf("run-%d", i),
			Mode:      types.RunModeCheck,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.StartRun(ctx, run))
		require.NoError(t, store.Record(ctx, events.New(run.ID, events.EventTypeRunStarted, "")))
	}

	runs, err := store.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].ID, "newest first")
	assert.Equal(t, "run-2", runs[2].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	deleted, err := store.PruneRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "run-4", remaining[0].ID)
	assert.Equal(t, "run-3", remaining[1].ID)

	evs, err := store.GetRunEvents(ctx, "run-0")
	require.NoError(t, err)
	assert.Empty(t, evs, "events of pruned runs are deleted")

	deleted, err = store.PruneRuns(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted, "keep=0 keeps everything")
}

func TestRunEvents(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	require.NoError(t, store.StartRun(ctx, &types.Run{ID: "run-1", Mode: types.RunModeSync, StartedAt: time.Now()}))

	sequence := []events.EventType{
		events.EventTypeRunStarted,
		events.EventTypeRegenerated,
		events.EventTypeCommitted,
	}
	for _, typ := range sequence {
		require.NoError(t, store.Record(ctx, events.New("run-1", typ, string(typ)+" message")))
	}

	evs, err := store.GetRunEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, evs, len(sequence))
	for i, typ := range sequence {
		assert.Equal(t, string(typ), evs[i].Type)
		assert.Equal(t, "run-1", evs[i].RunID)
		assert.Equal(t, string(typ)+" message", evs[i].Message)
		assert.False(t, evs[i].CreatedAt.IsZero())
	}
}

func TestRecordRequiresRun(t *testing.T) {
	store := setupTestDB(t)
	err := store.Record(context.Background(), events.New("ghost", events.EventTypeSkipped, ""))
	assert.Error(t, err, "foreign key should reject events for unknown runs")
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.StartRun(ctx, &types.Run{ID: "m", Mode: types.RunModeCheck, StartedAt: time.Now()}))
	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
