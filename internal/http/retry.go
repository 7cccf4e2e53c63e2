package http

import (
	"context"
	"time"

	"checkin/internal/core"
	"checkin/internal/logging"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
)

// Sender sends one request with the given session jar.
type Sender interface {
	Send(ctx context.Context, spec core.RequestSpec, jar string) Outcome
}

// Retrier resends a failing step a bounded number of times.
type Retrier struct {
	sender   Sender
	sleeper  core.Sleeper
	log      logging.Logger
	attempts int
	delay    time.Duration
}

func NewRetrier(sender Sender, sleeper core.Sleeper, log logging.Logger) *Retrier {
	if sleeper == nil {
		sleeper = core.RealSleeper{}
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Retrier{
		sender:   sender,
		sleeper:  sleeper,
		log:      log,
		attempts: DefaultAttempts,
		delay:    DefaultRetryDelay,
	}
}

// SendWithRetry returns the first successful Outcome, or the last failure
// once all attempts are spent. Every attempt sees the jar returned by the
// previous one.
func (r *Retrier) SendWithRetry(ctx context.Context, spec core.RequestSpec, jar, label string) Outcome {
	var out Outcome
	for attempt := 1; attempt <= r.attempts; attempt++ {
		out = r.sender.Send(ctx, spec, jar)
		jar = out.Jar
		if out.OK {
			if attempt > 1 {
				r.log.Info("step recovered", "step", label, "attempt", attempt)
			}
			return out
		}

		if attempt == r.attempts {
			break
		}
		r.log.Warn("step failed, retrying",
			"step", label,
			"attempt", attempt,
			"reason", out.Message,
			"delay", r.delay,
		)
		if err := r.sleeper.Sleep(ctx, r.delay); err != nil {
			return out
		}
	}

	r.log.Error("step failed after retries",
		"step", label,
		"attempts", r.attempts,
		"reason", out.Message,
	)
	return out
}
