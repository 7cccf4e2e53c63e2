package collector

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatText writes the report in human-readable form for the log.
func FormatText(w io.Writer, r *Report) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, r.Title())
	fmt.Fprintln(w, "==============================")
	fmt.Fprintf(w, "运行编号:   %s\n", r.RunID)
	fmt.Fprintf(w, "开始时间:   %s\n", r.StartedAt.Format(timeLayout))
	fmt.Fprintf(w, "总耗时:     %s\n", FormatDuration(r.Summary.Elapsed))
	fmt.Fprintf(w, "任务:       %d 成功 / %d 失败 / 共 %d\n",
		r.Summary.Succeeded, r.Summary.Failed, r.Summary.Total)
	fmt.Fprintf(w, "累计签到:   %d 天\n", r.SuccessfulDays)

	if len(r.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "任务明细:")
		for _, res := range r.Results {
			symbol := "✓"
			if !res.Success {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %-15s %8s  %s\n", symbol, res.Name, FormatDuration(res.Duration), res.Message)
		}
	}

	if len(r.Rewards) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "奖励:")
		for _, rw := range r.Rewards {
			fmt.Fprintf(w, "  %s: %s\n", rw.Name, rw.Value)
		}
	}
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"duration": FormatDuration,
	"time":     func(t time.Time) string { return t.Format(timeLayout) },
}).Parse(`<h3>{{.Title}}</h3>
<p>开始时间: {{time .StartedAt}}<br>
总耗时: {{duration .Summary.Elapsed}}<br>
任务: {{.Summary.Succeeded}} 成功 / {{.Summary.Failed}} 失败 / 共 {{.Summary.Total}}<br>
累计签到: <b>{{.SuccessfulDays}}</b> 天</p>
<table border="1" cellspacing="0" cellpadding="4">
<tr><th>任务</th><th>状态</th><th>耗时</th><th>信息</th></tr>
{{- range .Results}}
<tr><td>{{.Name}}</td><td>{{if .Success}}✅{{else}}❌{{end}}</td><td>{{duration .Duration}}</td><td>{{.Message}}</td></tr>
{{- end}}
</table>
{{- if .Rewards}}
<p>奖励:</p>
<ul>
{{- range .Rewards}}
<li>{{.Name}}: {{.Value}}</li>
{{- end}}
</ul>
{{- end}}
<p style="color:#888">run {{.RunID}}</p>
`))

// FormatHTML writes the report as an HTML fragment for push notifications.
// Task names and messages are escaped.
func FormatHTML(w io.Writer, r *Report) error {
	return htmlReport.Execute(w, r)
}

// FormatJSON writes the report in JSON format.
func FormatJSON(w io.Writer, r *Report) error {
	output := struct {
		*Report
		Title     string `json:"title"`
		Total     int    `json:"total"`
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
		Elapsed   string `json:"elapsed"`
	}{
		Report:    r,
		Title:     r.Title(),
		Total:     r.Summary.Total,
		Succeeded: r.Summary.Succeeded,
		Failed:    r.Summary.Failed,
		Elapsed:   r.Summary.Elapsed.Round(time.Millisecond).String(),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(output)
}
