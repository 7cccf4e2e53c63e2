package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"checkin/testserver"
)

func executeCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())

	code := ExitSuccess
	if err != nil {
		code = ExitError
		if e, ok := err.(*exitError); ok {
			code = e.code
		}
	}
	return stdout.String(), stderr.String(), code
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DEBUG_MODE", "CONSOLE_CONCISE_MODE", "WXPUSHER_APP_TOKEN", "WXPUSHER_UIDS",
		"PUSHOVER_APP_TOKEN", "PUSHOVER_USER_KEY", "TASKS_FILE", "STATUS_FILE",
		"REWARDS_FILE", "LOG_FILE", "HISTORY_DB", "REQUEST_TIMEOUT", "MAX_WORKERS",
		"RATE_LIMIT_RPS",
	} {
		t.Setenv(k, "")
	}
}

func writeCheckinSetup(t *testing.T, dir, siteURL string) {
	t.Helper()
	har := map[string]any{"log": map[string]any{"entries": []any{
		map[string]any{"request": map[string]any{
			"method":   "POST",
			"url":      siteURL + "/auth/login",
			"headers":  []map[string]string{{"name": "Content-Type", "value": "application/json"}},
			"postData": map[string]string{"mimeType": "application/json", "text": `{"user":"cli"}`},
		}},
		map[string]any{"request": map[string]any{
			"method":  "POST",
			"url":     siteURL + "/checkin",
			"headers": []map[string]string{},
		}},
	}}}
	data, err := json.Marshal(har)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.har"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"),
		[]byte(`[{"name": "site", "har_file": "site.har"}]`), 0o644))
}

func TestVersionCommand(t *testing.T) {
	stdout, _, code := executeCLI(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, Version+"\n", stdout)
}

func TestRunCommand_Success(t *testing.T) {
	isolateEnv(t)
	site := testserver.NewServer()
	ts := httptest.NewServer(site.Handler())
	defer ts.Close()

	dir := t.TempDir()
	writeCheckinSetup(t, dir, ts.URL)

	stdout, _, code := executeCLI(t, "run", "--dir", dir)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "✅ 签到任务全部成功")
	assert.Equal(t, 1, site.CheckIns("cli"))

	data, err := os.ReadFile(filepath.Join(dir, "status.json"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.GetBytes(data, "successful_days").Int())
	assert.FileExists(t, filepath.Join(dir, "task.log"))
}

func TestRunIsDefaultCommand(t *testing.T) {
	isolateEnv(t)
	site := testserver.NewServer()
	ts := httptest.NewServer(site.Handler())
	defer ts.Close()

	dir := t.TempDir()
	writeCheckinSetup(t, dir, ts.URL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HISTORY_DB=runs.db\n"), 0o644))

	_, _, code := executeCLI(t, "--dir", dir)
	assert.Equal(t, ExitSuccess, code)
	assert.FileExists(t, filepath.Join(dir, "runs.db"))
}

func TestRunCommand_TaskFailureExitCode(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"),
		[]byte(`[{"name": "gone", "har_file": "missing.har"}]`), 0o644))

	stdout, _, code := executeCLI(t, "run", "--dir", dir)
	assert.Equal(t, ExitTaskFailed, code)
	assert.Contains(t, stdout, "抓包文件无效")
}

func TestRunCommand_MissingTaskList(t *testing.T) {
	isolateEnv(t)
	_, _, code := executeCLI(t, "run", "--dir", t.TempDir())
	assert.Equal(t, ExitError, code)
}

func TestRunCommand_MissingEnvFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	_, stderr, code := executeCLI(t, "run", "--dir", dir, "--env-file", filepath.Join(dir, "nope.env"))
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "load settings")
}

func TestRunCommand_JSONReport(t *testing.T) {
	isolateEnv(t)
	site := testserver.NewServer()
	ts := httptest.NewServer(site.Handler())
	defer ts.Close()

	dir := t.TempDir()
	writeCheckinSetup(t, dir, ts.URL)

	stdout, _, code := executeCLI(t, "run", "--dir", dir, "--json")
	require.Equal(t, ExitSuccess, code)
	require.True(t, gjson.Valid(stdout), stdout)
	assert.Equal(t, "✅ 签到任务全部成功", gjson.Get(stdout, "title").String())
	assert.Equal(t, int64(1), gjson.Get(stdout, "successfulDays").Int())
	assert.Equal(t, "site", gjson.Get(stdout, "results.0.name").String())
}

func TestHistoryCommand(t *testing.T) {
	isolateEnv(t)
	site := testserver.NewServer()
	ts := httptest.NewServer(site.Handler())
	defer ts.Close()

	dir := t.TempDir()
	writeCheckinSetup(t, dir, ts.URL)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HISTORY_DB=runs.db\n"), 0o644))

	for i := 0; i < 2; i++ {
		_, _, code := executeCLI(t, "run", "--dir", dir)
		require.Equal(t, ExitSuccess, code)
	}

	stdout, _, code := executeCLI(t, "history", "--dir", dir, "--limit", "1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "成功  1/1  days=2")
	assert.Contains(t, stdout, "✓ site:")
	assert.NotContains(t, stdout, "days=1")

	stdout, _, code = executeCLI(t, "history", "--dir", dir, "--json")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, int64(2), gjson.Get(stdout, "#").Int())
	assert.Equal(t, int64(2), gjson.Get(stdout, "0.SuccessfulDays").Int())
}

func TestHistoryCommand_Disabled(t *testing.T) {
	isolateEnv(t)
	_, stderr, code := executeCLI(t, "history", "--dir", t.TempDir())
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "HISTORY_DB")
}
