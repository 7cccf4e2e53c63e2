// Package core defines the data model and execution primitives shared by the
// replay engine: captured requests, task configuration, task results, and the
// round-by-round task runner.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BodyKind records how a captured request body was decoded.
type BodyKind int

const (
	BodyNone   BodyKind = iota
	BodyText            // plain text, sent as UTF-8
	BodyJSON            // JSON text, kept byte-exact
	BodyBinary          // raw bytes (base64 or octet-stream captures)
)

// RequestSpec is one captured HTTP request. It is treated as immutable once
// parsed; use CloneHeaders before mutating headers for a send.
type RequestSpec struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	BodyKind BodyKind
}

// HasBody reports whether the capture carried a request body.
func (r RequestSpec) HasBody() bool {
	return r.BodyKind != BodyNone
}

// CloneHeaders returns a copy of the captured headers.
func (r RequestSpec) CloneHeaders() map[string]string {
	out := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		out[k] = v
	}
	return out
}

// HeaderKey returns the key under which name is stored in headers, matching
// case-insensitively, or "" when absent.
func HeaderKey(headers map[string]string, name string) string {
	if _, ok := headers[name]; ok {
		return name
	}
	for k := range headers {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return ""
}

// Default task messages used when the task list leaves them empty.
const (
	DefaultTaskName   = "未命名任务"
	DefaultSuccessMsg = "执行成功"
	DefaultFailMsg    = "执行失败"
)

// TaskConfig describes one task from the task list.
type TaskConfig struct {
	Name            string  `json:"name" toml:"name"`
	CaptureFile     string  `json:"har_file" toml:"har_file"`
	Count           int     `json:"count" toml:"count"`
	IntervalSeconds float64 `json:"interval_seconds" toml:"interval_seconds"`
	SuccessMsg      string  `json:"success_msg" toml:"success_msg"`
	FailMsg         string  `json:"fail_msg" toml:"fail_msg"`

	// LoadErr marks an entry that could not be used as written. Such a task
	// is reported as failed without being run.
	LoadErr error `json:"-" toml:"-"`
}

// WithDefaults fills empty fields and clamps out-of-range values.
func (c TaskConfig) WithDefaults() TaskConfig {
	if c.Name == "" {
		c.Name = DefaultTaskName
	}
	if c.Count < 1 {
		c.Count = 1
	}
	if c.IntervalSeconds < 0 {
		c.IntervalSeconds = 0
	}
	if c.SuccessMsg == "" {
		c.SuccessMsg = DefaultSuccessMsg
	}
	if c.FailMsg == "" {
		c.FailMsg = DefaultFailMsg
	}
	return c
}

// Interval returns the pause between rounds.
func (c TaskConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// Failure builds a failed result for this task with the given reason.
func (c TaskConfig) Failure(reason string, d time.Duration) TaskResult {
	return TaskResult{
		Name:     c.Name,
		Success:  false,
		Duration: d,
		Message:  fmt.Sprintf("%s: %s", c.FailMsg, reason),
	}
}

// TaskResult is the outcome of one task for one run.
type TaskResult struct {
	Name     string        `json:"name"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	Message  string        `json:"message"`
}

// StepError reports the first failing step of a round.
type StepError struct {
	Step    int // 1-based
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("步骤 %d 失败 - %s", e.Step, e.Message)
}

// Workflow executes one round of a task's step sequence.
type Workflow interface {
	RunRound(ctx context.Context, round int) error
}

// Reporter receives finished task results. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(TaskResult)
}
