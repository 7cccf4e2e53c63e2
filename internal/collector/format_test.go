package collector

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"checkin/internal/core"
)

func sampleReport() *Report {
	results := []core.TaskResult{
		{Name: "论坛签到", Success: true, Duration: 1200 * time.Millisecond, Message: "签到成功"},
		{Name: "<script>", Success: false, Duration: 300 * time.Millisecond, Message: "执行失败: 步骤 2 失败 - status:500"},
	}
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &Report{
		RunID:          "run-1",
		StartedAt:      start,
		FinishedAt:     start.Add(2 * time.Second),
		Results:        results,
		Summary:        Summarize(results, 2*time.Second),
		SuccessfulDays: 12,
		Rewards:        []RewardLine{{Name: "vip_days", Value: "36"}, {Name: "bonus", Value: "1h 30m"}},
	}
}

func TestFormatText(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, sampleReport())
	output := buf.String()

	for _, want := range []string{
		"❌ 签到任务存在失败 (1/2)",
		"run-1",
		"1 成功 / 1 失败 / 共 2",
		"累计签到:   12 天",
		"✓ 论坛签到",
		"步骤 2 失败 - status:500",
		"vip_days: 36",
		"bonus: 1h 30m",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatText_NoRewards(t *testing.T) {
	r := sampleReport()
	r.Rewards = nil
	var buf bytes.Buffer
	FormatText(&buf, r)
	if strings.Contains(buf.String(), "奖励") {
		t.Errorf("rewards section should be omitted:\n%s", buf.String())
	}
}

func TestFormatHTML_EscapesTaskData(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatHTML(&buf, sampleReport()); err != nil {
		t.Fatalf("FormatHTML() error = %v", err)
	}
	output := buf.String()

	if strings.Contains(output, "<script>") {
		t.Error("task name should be escaped")
	}
	for _, want := range []string{"&lt;script&gt;", "<b>12</b>", "<li>vip_days: 36</li>", "❌ 签到任务存在失败 (1/2)"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatJSON(&buf, sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if got := gjson.Get(out, "runId").String(); got != "run-1" {
		t.Errorf("runId = %q", got)
	}
	if got := gjson.Get(out, "failed").Int(); got != 1 {
		t.Errorf("failed = %d", got)
	}
	if got := gjson.Get(out, "results.#").Int(); got != 2 {
		t.Errorf("results = %d", got)
	}
	if got := gjson.Get(out, "rewards.1.value").String(); got != "1h 30m" {
		t.Errorf("rewards.1.value = %q", got)
	}
	if got := gjson.Get(out, "title").String(); !strings.HasPrefix(got, "❌") {
		t.Errorf("title = %q", got)
	}
}
