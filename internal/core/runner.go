package core

import (
	"context"

	"checkin/internal/logging"
)

// Runner executes a task's rounds in order and turns the outcome into a
// TaskResult. A Runner holds no per-task state and may be shared.
type Runner struct {
	clock   Clock
	sleeper Sleeper
	log     logging.Logger
}

// NewRunner creates a Runner. Nil arguments fall back to the real clock,
// a real sleeper and a no-op logger.
func NewRunner(clock Clock, sleeper Sleeper, log logging.Logger) *Runner {
	if clock == nil {
		clock = RealClock{}
	}
	if sleeper == nil {
		sleeper = RealSleeper{}
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Runner{clock: clock, sleeper: sleeper, log: log}
}

// Run executes cfg.Count rounds of wf. The first failing round aborts the
// task; the interval is slept between rounds but not after the last one.
func (r *Runner) Run(ctx context.Context, cfg TaskConfig, wf Workflow) TaskResult {
	cfg = cfg.WithDefaults()
	start := r.clock.Now()
	log := r.log.With("task", cfg.Name)

	for round := 1; round <= cfg.Count; round++ {
		if err := ctx.Err(); err != nil {
			return cfg.Failure(err.Error(), r.clock.Since(start))
		}

		log.Info("round started", "round", round, "of", cfg.Count)
		if err := wf.RunRound(ctx, round); err != nil {
			log.Error("round failed", "round", round, "error", err)
			return cfg.Failure(err.Error(), r.clock.Since(start))
		}

		if round < cfg.Count && cfg.IntervalSeconds > 0 {
			log.Debug("waiting before next round", "interval", cfg.Interval())
			if err := r.sleeper.Sleep(ctx, cfg.Interval()); err != nil {
				return cfg.Failure(err.Error(), r.clock.Since(start))
			}
		}
	}

	return TaskResult{
		Name:     cfg.Name,
		Success:  true,
		Duration: r.clock.Since(start),
		Message:  cfg.SuccessMsg,
	}
}
