package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"checkin/internal/config"
	"checkin/internal/history"
	replay "checkin/internal/http"
	"checkin/internal/logging"
	"checkin/internal/notify"
	"checkin/internal/orchestrator"
	"checkin/internal/ratelimit"
	"checkin/internal/status"
)

type app struct {
	orch    *orchestrator.Orchestrator
	log     logging.Logger
	closers []io.Closer
}

func wireApp(opts *options, stdout, stderr io.Writer) (*app, error) {
	settings, err := config.Load(viper.New(), opts.dir, opts.envFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if opts.debug {
		settings.Debug = true
	}

	log, logCloser := logging.New(logging.Options{
		Debug:   settings.Debug,
		Concise: settings.ConsoleConcise,
		File:    settings.LogFile,
		Console: stderr,
	})
	a := &app{log: log, closers: []io.Closer{logCloser}}

	limiter := ratelimit.NewRateLimiter(settings.RateLimitRPS)
	if limiter != nil {
		log.Info("request rate capped", "rps", limiter.Limit())
	}
	clientOpts := []replay.ClientOption{replay.WithRateLimiter(limiter)}
	if settings.Debug {
		clientOpts = append(clientOpts, replay.WithDebug(replay.NewDebugLogger(log)))
	}
	client := replay.NewClient(settings.RequestTimeout, log, clientOpts...)

	manager := notify.NewManager(log,
		notify.NewWxPusher(settings.WxPusherAppToken, settings.WxPusherUIDs),
		notify.NewPushover(settings.PushoverAppToken, settings.PushoverUserKey),
	)

	deps := orchestrator.Deps{
		TasksFile:   settings.TasksFile,
		RewardsFile: settings.RewardsFile,
		Status:      status.NewStore(settings.StatusFile, log),
		Sender:      client,
		Notifier:    manager,
		Log:         log,
		Out:         stdout,
		JSONReport:  opts.jsonOutput,
		MaxWorkers:  settings.MaxWorkers,
	}

	if settings.HistoryDB != "" {
		store, err := history.Open(settings.HistoryDB, log)
		if err != nil {
			log.Warn("run history disabled", "error", err)
		} else {
			deps.History = store
			a.closers = append(a.closers, store)
		}
	}

	if err := deps.Validate(); err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orchestrator.New(deps)

	log.Debug("settings resolved",
		"tasks", settings.TasksFile,
		"status", settings.StatusFile,
		"rewards", settings.RewardsFile,
		"timeout", settings.RequestTimeout,
		"maxWorkers", settings.MaxWorkers,
		"rps", limiter.Limit(),
		"channels", manager.Channels(),
	)
	return a, nil
}

func (a *app) run(ctx context.Context) int {
	report, err := a.orch.Run(ctx)
	return orchestrator.ExitCode(report, err)
}

// Close releases the history database and flushes the log file, newest
// first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}
