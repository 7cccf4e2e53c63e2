package http

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"checkin/internal/logging"
)

const maxBodyLogSize = 1024

// DebugLogger dumps full requests and responses at debug level. A nil
// *DebugLogger logs nothing.
type DebugLogger struct {
	log logging.Logger
}

func NewDebugLogger(log logging.Logger) *DebugLogger {
	if log == nil {
		return nil
	}
	return &DebugLogger{log: log}
}

func (d *DebugLogger) LogRequest(req *http.Request, body []byte) {
	if d == nil {
		return
	}
	kv := []any{
		"method", req.Method,
		"url", req.URL.String(),
		"headers", formatHeaders(req.Header),
	}
	if len(body) > 0 {
		kv = append(kv, "body", truncateBody(body))
	}
	d.log.Debug(">>> request", kv...)
}

func (d *DebugLogger) LogResponse(req *http.Request, resp *http.Response, body []byte, duration time.Duration) {
	if d == nil {
		return
	}
	kv := []any{
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", duration.Round(time.Millisecond),
		"headers", formatHeaders(resp.Header),
	}
	if len(body) > 0 {
		kv = append(kv, "body", truncateBody(body))
	}
	d.log.Debug("<<< response", kv...)
}

func (d *DebugLogger) LogError(req *http.Request, err error, duration time.Duration) {
	if d == nil {
		return
	}
	d.log.Debug("!!! request error",
		"url", req.URL.String(),
		"duration", duration.Round(time.Millisecond),
		"error", err,
	)
}

// formatHeaders renders headers sorted by name, one "Name: v1, v2" per line.
func formatHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", name, strings.Join(h[name], ", "))
	}
	return b.String()
}

func truncateBody(body []byte) string {
	if len(body) <= maxBodyLogSize {
		return string(body)
	}
	return string(body[:maxBodyLogSize]) + fmt.Sprintf("... (truncated, %d bytes total)", len(body))
}
