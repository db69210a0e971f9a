package executors

import (
	"context"
	"time"

	"github.com/flowproc/bpmnengine/workflow"
)

// maxTimerDuration caps a timer's sleep for demo purposes (§4.3:
// "capped by implementation for demo purposes").
const maxTimerDuration = 5 * time.Minute

// executeTimer parses the node's ISO-8601 duration or absolute instant
// property and suspends for the resulting delay.
func executeTimer(ctx context.Context, req Request) (Result, error) {
	var wait time.Duration
	if until := stringProp(req.Node.Properties, "until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			wait = time.Until(t)
		}
	} else {
		wait = workflow.ParseISO8601Duration(stringProp(req.Node.Properties, "duration"))
	}
	if wait > maxTimerDuration {
		wait = maxTimerDuration
	}
	if wait <= 0 {
		return Result{}, nil
	}

	select {
	case <-time.After(wait):
		return Result{}, nil
	case <-ctx.Done():
		return Result{Cancelled: true}, ctx.Err()
	}
}
