package http

import (
	"context"
	"fmt"

	"checkin/internal/core"
	"checkin/internal/logging"
)

// Workflow replays a task's captured steps in order. Each round starts with
// an empty session jar that is threaded from one step to the next.
type Workflow struct {
	Task    core.TaskConfig
	Steps   []core.RequestSpec
	Retrier *Retrier
	Log     logging.Logger
}

// RunRound returns a *core.StepError for the first step that still fails
// after retries; later steps are not sent.
func (w *Workflow) RunRound(ctx context.Context, round int) error {
	log := w.Log
	if log == nil {
		log = logging.NewNop()
	}

	vars := core.NewVariables()
	vars.Set("task", w.Task.Name)
	vars.Set("round", round)
	ctx = core.ContextWithVariables(ctx, vars)

	jar := ""
	for i, step := range w.Steps {
		label := fmt.Sprintf("%s round %d step %d/%d", w.Task.Name, round, i+1, len(w.Steps))
		out := w.Retrier.SendWithRetry(ctx, step, jar, label)
		jar = out.Jar
		if !out.OK {
			return &core.StepError{Step: i + 1, Message: out.Message}
		}
		log.Debug("step ok", "step", label, "status", out.StatusCode, "method", step.Method, "url", step.URL)
	}
	return nil
}
