package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/core"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_JSONArray(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tasks.json", `[
		{"name": "论坛签到", "har_file": "forum.har", "count": 2, "interval_seconds": 1.5,
		 "success_msg": "签到成功", "fail_msg": "签到失败"},
		{"capture_file": "/abs/shop.har"}
	]`)

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, core.TaskConfig{
		Name:            "论坛签到",
		CaptureFile:     filepath.Join(dir, "forum.har"),
		Count:           2,
		IntervalSeconds: 1.5,
		SuccessMsg:      "签到成功",
		FailMsg:         "签到失败",
	}, got[0])

	assert.Equal(t, core.TaskConfig{
		Name:        core.DefaultTaskName,
		CaptureFile: "/abs/shop.har",
		Count:       1,
		SuccessMsg:  core.DefaultSuccessMsg,
		FailMsg:     core.DefaultFailMsg,
	}, got[1])
}

func TestLoad_JSONObjectWrapper(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tasks.json", `{"tasks": [{"name": "a", "har_file": "a.har"}]}`)
	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tasks.toml", `
[[tasks]]
name = "论坛签到"
har_file = "captures/forum.har"
count = 3
interval_seconds = 0.5

[[tasks]]
name = "商城"
capture_file = "shop.har"
fail_msg = "商城失败"
`)

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, filepath.Join(dir, "captures", "forum.har"), got[0].CaptureFile)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, 0.5, got[0].IntervalSeconds)
	assert.Equal(t, filepath.Join(dir, "shop.har"), got[1].CaptureFile)
	assert.Equal(t, "商城失败", got[1].FailMsg)
	assert.Equal(t, core.DefaultSuccessMsg, got[1].SuccessMsg)
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tasks.json", `[{"name": "x", "har_file": "x.har", "count": 0, "interval_seconds": -4}]`)
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, got[0].Count)
	assert.Zero(t, got[0].IntervalSeconds)
}

func TestLoad_EmptyList(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"empty.json":  "",
		"array.json":  "[]",
		"empty.toml":  "# nothing\n",
		"object.json": "{}",
	} {
		got, err := Load(writeFile(t, dir, name, content))
		require.NoError(t, err, name)
		assert.Empty(t, got, name)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Load(writeFile(t, dir, "bad.json", `[{"name": 1}]`))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeFile(t, dir, "bad.toml", "[[tasks]\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_ConflictingCaptureMarksOnlyThatTask(t *testing.T) {
	dir := t.TempDir()
	got, err := Load(writeFile(t, dir, "tasks.json", `[
		{"name": "ok", "har_file": "a.har", "capture_file": "a.har"},
		{"name": "conflict", "har_file": "a.har", "capture_file": "b.har"}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.NoError(t, got[0].LoadErr)
	assert.Equal(t, filepath.Join(dir, "a.har"), got[0].CaptureFile)

	assert.ErrorIs(t, got[1].LoadErr, ErrInvalid)
	assert.ErrorContains(t, got[1].LoadErr, "task 2")
	assert.Equal(t, "conflict", got[1].Name)
}

func TestLoad_MissingCaptureKeptForPerTaskFailure(t *testing.T) {
	got, err := Load(writeFile(t, t.TempDir(), "tasks.json", `[{"name": "no capture"}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].CaptureFile)
}
