package collector

import (
	"fmt"
	"time"

	"checkin/internal/core"
)

// Summary aggregates a run's task results. Pure data, no side effects.
type Summary struct {
	Total        int
	Succeeded    int
	Failed       int
	AllSucceeded bool // every task succeeded and at least one ran
	Elapsed      time.Duration
	Slowest      time.Duration
	AvgDuration  time.Duration
}

// Summarize computes a Summary from results.
func Summarize(results []core.TaskResult, elapsed time.Duration) Summary {
	s := Summary{Total: len(results), Elapsed: elapsed}
	var total time.Duration
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		total += r.Duration
		if r.Duration > s.Slowest {
			s.Slowest = r.Duration
		}
	}
	if s.Total > 0 {
		s.AvgDuration = total / time.Duration(s.Total)
	}
	s.AllSucceeded = s.Total > 0 && s.Failed == 0
	return s
}

// RewardLine is one computed reward field as shown in the report.
type RewardLine struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Report is everything the end-of-run notification and log need.
type Report struct {
	RunID          string            `json:"runId"`
	StartedAt      time.Time         `json:"startedAt"`
	FinishedAt     time.Time         `json:"finishedAt"`
	Results        []core.TaskResult `json:"results"`
	Summary        Summary           `json:"-"`
	SuccessfulDays int               `json:"successfulDays"`
	Rewards        []RewardLine      `json:"rewards,omitempty"`
}

// Title is the notification headline for the report.
func (r *Report) Title() string {
	if r.Summary.AllSucceeded {
		return "✅ 签到任务全部成功"
	}
	return fmt.Sprintf("❌ 签到任务存在失败 (%d/%d)", r.Summary.Failed, r.Summary.Total)
}

// StatusText is the persisted status string for the run.
func (r *Report) StatusText() string {
	if r.Summary.AllSucceeded {
		return "成功"
	}
	return "失败"
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}
