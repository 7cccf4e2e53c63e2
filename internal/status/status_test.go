package status

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func load(t *testing.T, store *Store) Status {
	t.Helper()
	st, err := store.Load()
	require.NoError(t, err)
	return st
}

func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "status.json"), nil)
	st := load(t, store)

	assert.Equal(t, 0, st.SuccessfulDays)
	assert.Empty(t, st.LastRunStatus)
	assert.True(t, st.LastRunTime.IsZero())
}

func TestStore_LoadCorruptFile(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"{broken", "[1,2,3]", ""} {
		path := filepath.Join(t.TempDir(), "status.json")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		st := load(t, NewStore(path, nil))
		assert.Equal(t, 0, st.SuccessfulDays, "content %q", content)
	}
}

func TestStore_RoundTripPreservesUnknownFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "successful_days": 7,
  "last_run_status": "失败",
  "note": "kept by hand",
  "nested": {"a": [1, 2]}
}`), 0o644))

	store := NewStore(path, nil)
	st := load(t, store)
	require.Equal(t, 7, st.SuccessfulDays)
	require.Equal(t, "失败", st.LastRunStatus)

	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.FixedZone("CST", 8*3600))
	st = st.RecordRun(true, "成功", at)
	st.Rewards = []Reward{{Name: "vip_days", Value: 24}, {Name: "bonus_time", Value: "2h 0m"}}
	require.NoError(t, store.Save(st))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := gjson.ParseBytes(data)

	assert.Equal(t, int64(8), doc.Get("successful_days").Int())
	assert.Equal(t, "成功", doc.Get("last_run_status").String())
	assert.Equal(t, "2024-05-01T08:30:00+08:00", doc.Get("last_run_time").String())
	assert.Equal(t, int64(24), doc.Get("vip_days").Int())
	assert.Equal(t, "2h 0m", doc.Get("bonus_time").String())
	assert.Equal(t, "kept by hand", doc.Get("note").String())
	assert.Equal(t, int64(2), doc.Get("nested.a.1").Int())

	reloaded := load(t, store)
	assert.Equal(t, 8, reloaded.SuccessfulDays)
	assert.True(t, reloaded.LastRunTime.Equal(at))
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "status.json"), nil)
	require.NoError(t, store.Save(Status{SuccessfulDays: 1, LastRunStatus: "成功"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "status.json", entries[0].Name())
}

func TestStore_SaveFailureRemovesTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "status.json")
	// A directory at the target path makes the rename fail.
	require.NoError(t, os.Mkdir(path, 0o755))

	err := NewStore(path, nil).Save(Status{SuccessfulDays: 3})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be cleaned up")
}

func TestStatus_RecordRun(t *testing.T) {
	t.Parallel()

	now := time.Now()
	st := Status{SuccessfulDays: 4}

	failed := st.RecordRun(false, "失败", now)
	assert.Equal(t, 4, failed.SuccessfulDays)
	assert.Equal(t, "失败", failed.LastRunStatus)

	ok := failed.RecordRun(true, "成功", now)
	assert.Equal(t, 5, ok.SuccessfulDays)
	assert.Equal(t, 4, st.SuccessfulDays, "RecordRun must not mutate the receiver")
}

func TestStore_NegativeCounterClamped(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"successful_days": -3}`), 0o644))
	assert.Equal(t, 0, load(t, NewStore(path, nil)).SuccessfulDays)
}

func TestStore_LoadUnreadableFile(t *testing.T) {
	t.Parallel()

	// A directory at the status path cannot be read as a file.
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.Mkdir(path, 0o755))

	st, err := NewStore(path, nil).Load()
	require.Error(t, err)
	assert.Equal(t, 0, st.SuccessfulDays)
}

func TestStore_SaveRefusesNonFiniteReward(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status.json")
	store := NewStore(path, nil)
	require.NoError(t, store.Save(Status{SuccessfulDays: 42, LastRunStatus: "成功"}))

	for _, bad := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		st := load(t, store)
		st.Rewards = []Reward{{Name: "big", Value: bad}}
		err := store.Save(st)
		require.ErrorIs(t, err, ErrInvalidDocument)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, gjson.ValidBytes(data))
	assert.Equal(t, 42, load(t, store).SuccessfulDays)
}
