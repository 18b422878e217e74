package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"movie-pipeline/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}

func TestRunLifecycle(t *testing.T) {
	l := openTemp(t)
	ctx := context.Background()
	id := NewRunID()

	require.NoError(t, l.StartRun(ctx, id, []string{"a.csv", "b.json"}))

	running, err := l.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, running.Status)
	assert.Equal(t, []string{"a.csv", "b.json"}, running.Sources)

	require.NoError(t, l.RecordStage(ctx, id, model.StageReport{Stage: "required", In: 10, Rejected: 2}))
	require.NoError(t, l.RecordStage(ctx, id, model.StageReport{Stage: "year", In: 8, Rejected: 1}))
	require.NoError(t, l.RecordError(ctx, id, "write", errors.New("connection reset")))
	require.NoError(t, l.RecordError(ctx, id, "write", nil))

	summary := model.RunSummary{
		RunID:    id,
		Status:   model.RunStatusFailed,
		Sources:  []string{"a.csv", "b.json"},
		Ingested: 10,
		Movies:   model.WriteStats{Collection: "movies", Inserted: 7},
		Error:    "connection reset",
	}
	require.NoError(t, l.FinishRun(ctx, summary))

	got, err := l.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, summary.Status, got.Status)
	assert.Equal(t, summary.Movies, got.Movies)
	assert.Equal(t, summary.Error, got.Error)

	stages, err := l.Stages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []model.StageReport{{Stage: "required", In: 10, Rejected: 2}, {Stage: "year", In: 8, Rejected: 1}}, stages)

	errs, err := l.Errors(ctx, id)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "write", errs[0].Stage)
	assert.Equal(t, "connection reset", errs[0].Message)
}

func TestGetRunUnknown(t *testing.T) {
	_, err := openTemp(t).GetRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestFinishRunUnknown(t *testing.T) {
	err := openTemp(t).FinishRun(context.Background(), model.RunSummary{RunID: "nope", Status: model.RunStatusCompleted})
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRunsNewestFirst(t *testing.T) {
	l := openTemp(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	ctx := context.Background()
	require.NoError(t, l.StartRun(ctx, "first", nil))
	require.NoError(t, l.StartRun(ctx, "second", []string{"x.csv"}))
	require.NoError(t, l.StartRun(ctx, "third", nil))

	runs, err := l.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].ID)
	assert.Equal(t, "first", runs[2].ID)
	assert.Equal(t, []string{"x.csv"}, runs[1].Sources)

	limited, err := l.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
