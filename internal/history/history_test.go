package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/collector"
	"checkin/internal/core"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id string, started time.Time, results ...core.TaskResult) *collector.Report {
	return &collector.Report{
		RunID:          id,
		StartedAt:      started,
		FinishedAt:     started.Add(time.Minute),
		Results:        results,
		Summary:        collector.Summarize(results, time.Minute),
		SuccessfulDays: 4,
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, report("run-1", base,
		core.TaskResult{Name: "a", Success: true, Duration: 1500 * time.Millisecond, Message: "ok"},
	)))
	require.NoError(t, s.Record(ctx, report("run-2", base.Add(24*time.Hour),
		core.TaskResult{Name: "b", Success: false, Duration: time.Second, Message: "执行失败: 步骤 1 失败 - status:500"},
		core.TaskResult{Name: "a", Success: true, Duration: 2 * time.Second, Message: "ok"},
	)))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	latest := runs[0]
	assert.Equal(t, "run-2", latest.RunID)
	assert.Equal(t, 2, latest.Total)
	assert.Equal(t, 1, latest.Failed)
	assert.False(t, latest.AllSucceeded)
	assert.Equal(t, 4, latest.SuccessfulDays)
	require.Len(t, latest.Tasks, 2)
	assert.Equal(t, "b", latest.Tasks[0].Name)
	assert.Equal(t, "执行失败: 步骤 1 失败 - status:500", latest.Tasks[0].Message)
	assert.Equal(t, int64(2000), latest.Tasks[1].DurationMs)

	assert.Equal(t, "run-1", runs[1].RunID)
	assert.True(t, runs[1].AllSucceeded)
	assert.Equal(t, int64(1500), runs[1].Tasks[0].DurationMs)

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-2", limited[0].RunID)
}

func TestStore_DuplicateRunIDRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r := report("dup", time.Now(), core.TaskResult{Name: "a", Success: true})
	require.NoError(t, s.Record(ctx, r))
	assert.Error(t, s.Record(ctx, r))
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), report("persist", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persist", runs[0].RunID)
	assert.Empty(t, runs[0].Tasks)
}

func TestStore_Closed(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Record(context.Background(), report("x", time.Now())), ErrClosed)
	_, err := s.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}
