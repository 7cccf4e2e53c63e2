package http

import (
	"context"
	"fmt"
	"testing"
	"time"

	"checkin/internal/core"
)

// scriptedSender replays canned outcomes and records the jars it was given.
type scriptedSender struct {
	outcomes []Outcome
	jars     []string
}

func (s *scriptedSender) Send(_ context.Context, _ core.RequestSpec, jar string) Outcome {
	s.jars = append(s.jars, jar)
	i := len(s.jars) - 1
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	return s.outcomes[i]
}

func TestRetrier_FirstAttemptSucceeds(t *testing.T) {
	sender := &scriptedSender{outcomes: []Outcome{{OK: true, Message: "OK", Jar: "sid=1"}}}
	sleeper := &core.RecordingSleeper{}

	out := NewRetrier(sender, sleeper, nil).SendWithRetry(context.Background(), core.RequestSpec{}, "", "step 1")
	if !out.OK || out.Jar != "sid=1" {
		t.Errorf("unexpected outcome %+v", out)
	}
	if len(sender.jars) != 1 || len(sleeper.Calls()) != 0 {
		t.Errorf("sends=%d sleeps=%v", len(sender.jars), sleeper.Calls())
	}
}

func TestRetrier_SucceedsOnRetry(t *testing.T) {
	sender := &scriptedSender{outcomes: []Outcome{
		{Message: "status:502", Jar: "a=1"},
		{OK: true, Message: "OK", Jar: "a=1; b=2"},
	}}
	sleeper := &core.RecordingSleeper{}

	out := NewRetrier(sender, sleeper, nil).SendWithRetry(context.Background(), core.RequestSpec{}, "seed=0", "step")
	if !out.OK {
		t.Fatalf("expected success, got %+v", out)
	}
	if len(sender.jars) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.jars))
	}
	// The second attempt sees the jar returned by the first.
	if sender.jars[0] != "seed=0" || sender.jars[1] != "a=1" {
		t.Errorf("jars = %v", sender.jars)
	}
	if calls := sleeper.Calls(); len(calls) != 1 || calls[0] != time.Second {
		t.Errorf("sleeps = %v, want [1s]", calls)
	}
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	for failures := 1; failures <= DefaultAttempts; failures++ {
		t.Run(fmt.Sprintf("success_after_%d", failures), func(t *testing.T) {
			outcomes := make([]Outcome, 0, failures+1)
			for i := 0; i < failures; i++ {
				outcomes = append(outcomes, Outcome{Message: fmt.Sprintf("status:50%d", i), Jar: fmt.Sprintf("n=%d", i)})
			}
			outcomes = append(outcomes, Outcome{OK: true, Message: "OK"})
			sender := &scriptedSender{outcomes: outcomes}
			sleeper := &core.RecordingSleeper{}

			out := NewRetrier(sender, sleeper, nil).SendWithRetry(context.Background(), core.RequestSpec{}, "", "step")

			sends := len(sender.jars)
			if sends > DefaultAttempts {
				t.Fatalf("sent %d times, cap is %d", sends, DefaultAttempts)
			}
			if got := len(sleeper.Calls()); got != sends-1 {
				t.Errorf("sleeps = %d, want %d", got, sends-1)
			}
			if failures < DefaultAttempts {
				if !out.OK {
					t.Errorf("expected success, got %+v", out)
				}
				return
			}
			if out.OK || out.Message != "status:502" || out.Jar != "n=2" {
				t.Errorf("expected last failure, got %+v", out)
			}
		})
	}
}

func TestRetrier_CancelledDuringBackoff(t *testing.T) {
	sender := &scriptedSender{outcomes: []Outcome{{Message: "status:500"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewRetrier(sender, core.RealSleeper{}, nil).SendWithRetry(ctx, core.RequestSpec{}, "", "step")
	if out.OK {
		t.Fatal("expected failure")
	}
	if len(sender.jars) != 1 {
		t.Errorf("expected a single send before cancellation, got %d", len(sender.jars))
	}
}
