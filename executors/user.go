package executors

import (
	"context"
	"fmt"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/workflow"
)

// executeUserTask waits for a userTask.complete{taskId, decision, comments,
// user} frame to arrive over the bus (keyed by the node's own ID as the
// correlationKey, messageRef fixed to "userTask.complete"), and returns
// UserTaskRejected if the decision is a rejection; the engine treats that
// as a completed task rather than a failure.
func executeUserTask(ctx context.Context, req Request) (Result, error) {
	req.Deps.Broadcaster.Broadcast(events.New("userTask.created", req.Node.ID, map[string]any{
		"displayName": req.Node.DisplayName,
	}))

	timeout := workflow.ParseISO8601Duration(stringProp(req.Node.Properties, "timeout"))
	payload, err := req.Deps.Bus.WaitForMessage(ctx, req.Node.ID, "userTask.complete", req.Node.ID, timeout)
	if err != nil {
		return Result{}, fmt.Errorf("userTask %s: %w", req.Node.ID, err)
	}

	decision, comment := "approved", ""
	if m, ok := payload.(map[string]any); ok {
		if d, ok := m["decision"].(string); ok {
			decision = d
		}
		if c, ok := m["comments"].(string); ok {
			comment = c
		}
		for k, v := range m {
			req.Scope[req.Node.ID+"_"+k] = v
		}
	}

	if decision == "rejected" || decision == "denied" {
		return Result{}, &workflow.UserTaskRejected{NodeID: req.Node.ID, Comment: comment}
	}
	return Result{}, nil
}
