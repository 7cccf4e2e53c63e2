// Package orchestrator drives one check-in run: load state and tasks, replay
// every task on the worker pool, persist the outcome and report it.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"checkin/internal/collector"
	"checkin/internal/coordinator"
	"checkin/internal/core"
	"checkin/internal/har"
	replay "checkin/internal/http"
	"checkin/internal/logging"
	"checkin/internal/notify"
	"checkin/internal/progress"
	"checkin/internal/reward"
	"checkin/internal/status"
	"checkin/internal/tasks"
)

// DefaultNotifyTimeout bounds the notification and history writes at the end
// of a run. They run even when the run itself was cancelled.
const DefaultNotifyTimeout = 30 * time.Second

// Recorder appends a finished run to a ledger.
type Recorder interface {
	Record(ctx context.Context, r *collector.Report) error
}

// Deps are the collaborators of a run. Status and Sender are required.
type Deps struct {
	TasksFile   string
	RewardsFile string

	Status   *status.Store
	Sender   replay.Sender
	Notifier notify.Notifier
	History  Recorder

	Clock   core.Clock
	Sleeper core.Sleeper
	Log     logging.Logger
	Out     io.Writer // report output, nil discards

	// JSONReport writes the report to Out as JSON instead of text.
	JSONReport bool

	MaxWorkers       int
	ProgressInterval time.Duration
	NewRunID         func() string
}

type Orchestrator struct {
	d       Deps
	runner  *core.Runner
	retrier *replay.Retrier
}

func New(d Deps) *Orchestrator {
	if d.Clock == nil {
		d.Clock = core.RealClock{}
	}
	if d.Sleeper == nil {
		d.Sleeper = core.RealSleeper{}
	}
	if d.Log == nil {
		d.Log = logging.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Out == nil {
		d.Out = io.Discard
	}
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	return &Orchestrator{
		d:       d,
		runner:  core.NewRunner(d.Clock, d.Sleeper, d.Log),
		retrier: replay.NewRetrier(d.Sender, d.Sleeper, d.Log),
	}
}

// Run executes one check-in run. It returns a nil report when the task list
// is empty, and an error only when the task list cannot be loaded; task
// failures are reported through the returned report.
func (o *Orchestrator) Run(ctx context.Context) (*collector.Report, error) {
	runID := o.d.NewRunID()
	log := o.d.Log.With("runId", runID)
	started := o.d.Clock.Now()
	log.Info("==== check-in run started ====")

	st, statusErr := o.d.Status.Load()
	if statusErr != nil {
		log.Error("status file unreadable, it will not be overwritten this run", "file", o.d.Status.Path(), "error", statusErr)
	} else {
		log.Info("status loaded", "successfulDays", st.SuccessfulDays)
	}

	list, err := tasks.Load(o.d.TasksFile)
	if err != nil {
		log.Error("task list could not be loaded", "file", o.d.TasksFile, "error", err)
		return nil, err
	}
	if len(list) == 0 {
		log.Warn("task list is empty, nothing to do", "file", o.d.TasksFile)
		return nil, nil
	}
	log.Info("tasks loaded", "tasks", len(list))

	coll := collector.NewCollector()
	jobs := o.prepare(list, coll, log)

	coord := coordinator.NewCoordinator(coll, o.d.MaxWorkers, log)
	prog := progress.NewProgress(coll, len(list), log, o.d.ProgressInterval)
	prog.TrackWorkers(coord)
	prog.Start()
	coord.Dispatch(ctx, jobs)
	prog.Stop()
	coll.Close()

	finished := o.d.Clock.Now()
	results := coll.Results()
	report := &collector.Report{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finished,
		Results:    results,
		Summary:    collector.Summarize(results, finished.Sub(started)),
	}

	st = st.RecordRun(report.Summary.AllSucceeded, report.StatusText(), finished)
	report.SuccessfulDays = st.SuccessfulDays
	st.Rewards, report.Rewards = o.rewards(st.SuccessfulDays, log)

	if statusErr == nil {
		if err := o.d.Status.Save(st); err != nil {
			log.Error("status could not be saved", "file", o.d.Status.Path(), "error", err)
		}
	}

	o.publish(ctx, report, log)

	log.Info("==== check-in run finished ====",
		"succeeded", report.Summary.Succeeded,
		"failed", report.Summary.Failed,
		"successfulDays", report.SuccessfulDays,
		"elapsed", report.Summary.Elapsed.Round(time.Millisecond),
	)
	return report, nil
}

// prepare parses every capture. Tasks whose entry or capture cannot be used
// are reported as failed straight away; the rest become pool jobs.
func (o *Orchestrator) prepare(list []core.TaskConfig, coll *collector.Collector, log logging.Logger) []coordinator.Job {
	jobs := make([]coordinator.Job, 0, len(list))
	for _, task := range list {
		task := task.WithDefaults()
		if task.LoadErr != nil {
			log.Error("task entry invalid, task skipped", "task", task.Name, "error", task.LoadErr)
			coll.Add(task.Failure("任务配置无效 - "+task.LoadErr.Error(), 0))
			continue
		}
		steps, err := har.Parse(task.CaptureFile, log)
		if err != nil {
			log.Error("capture unusable, task skipped", "task", task.Name, "file", task.CaptureFile, "error", err)
			coll.Add(task.Failure("抓包文件无效 - "+err.Error(), 0))
			continue
		}
		log.Debug("capture ready", "task", task.Name, "steps", len(steps))

		wf := &replay.Workflow{
			Task:    task,
			Steps:   steps,
			Retrier: o.retrier,
			Log:     log.With("task", task.Name),
		}
		jobs = append(jobs, coordinator.Job{
			Task: task,
			Run: func(ctx context.Context) core.TaskResult {
				return o.runner.Run(ctx, task, wf)
			},
		})
	}
	return jobs
}

// rewards evaluates the reward rules for days. Rule problems are logged and
// the affected fields left out.
func (o *Orchestrator) rewards(days int, log logging.Logger) ([]status.Reward, []collector.RewardLine) {
	rules, err := reward.LoadRules(o.d.RewardsFile)
	if err != nil {
		log.Error("reward rules invalid", "file", o.d.RewardsFile, "error", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	fields, err := rules.Compute(days)
	if err != nil {
		log.Error("some rewards could not be computed", "error", err)
	}
	persisted := make([]status.Reward, 0, len(fields))
	lines := make([]collector.RewardLine, 0, len(fields))
	for _, f := range fields {
		persisted = append(persisted, status.Reward{Name: f.Name, Value: f.Value.Any()})
		lines = append(lines, collector.RewardLine{Name: f.Name, Value: f.Value.String()})
	}
	return persisted, lines
}

// publish writes the report, sends the notification once and appends the
// run to the history ledger. None of these can fail the run.
func (o *Orchestrator) publish(ctx context.Context, report *collector.Report, log logging.Logger) {
	if o.d.JSONReport {
		if err := collector.FormatJSON(o.d.Out, report); err != nil {
			log.Error("report could not be written", "error", err)
		}
	} else {
		collector.FormatText(o.d.Out, report)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultNotifyTimeout)
	defer cancel()

	var html bytes.Buffer
	if err := collector.FormatHTML(&html, report); err != nil {
		log.Error("report could not be rendered", "error", err)
	} else if err := o.d.Notifier.Send(ctx, report.Title(), html.String(), notify.HTML); err != nil {
		log.Error("notification failed", "error", err)
	}

	if o.d.History != nil {
		if err := o.d.History.Record(ctx, report); err != nil {
			log.Error("run history not recorded", "error", err)
		}
	}
}

// ExitCode maps a run outcome to the process exit status: 0 when every task
// succeeded or there was nothing to do, 1 when a task failed, 2 when the run
// could not start.
func ExitCode(report *collector.Report, err error) int {
	switch {
	case err != nil:
		return 2
	case report == nil || report.Summary.AllSucceeded:
		return 0
	default:
		return 1
	}
}

// ErrNoSender is returned by Validate when Deps lacks a Sender.
var ErrNoSender = errors.New("orchestrator: no request sender")

// Validate reports missing required collaborators.
func (d Deps) Validate() error {
	var errs []error
	if d.Status == nil {
		errs = append(errs, fmt.Errorf("orchestrator: no status store"))
	}
	if d.Sender == nil {
		errs = append(errs, ErrNoSender)
	}
	return errors.Join(errs...)
}
