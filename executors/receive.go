package executors

import (
	"context"
	"fmt"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/workflow"
)

// executeReceiveTask resolves correlationKey by ${var} substitution from
// variables, then blocks on the bus for (messageRef, correlationKey,
// timeout) (§4.3).
func executeReceiveTask(ctx context.Context, req Request) (Result, error) {
	messageRef, _ := req.Node.Properties["messageRef"].(string)
	correlationTemplate, _ := req.Node.Properties["correlationKey"].(string)
	correlationKey := workflow.ResolveVariables(correlationTemplate, req.Scope)

	timeout := workflow.ParseISO8601Duration(stringProp(req.Node.Properties, "timeout"))

	req.Deps.Broadcaster.Broadcast(events.New("task.progress", req.Node.ID, map[string]any{
		"status": "waiting", "messageRef": messageRef, "correlationKey": correlationKey,
	}))

	payload, err := req.Deps.Bus.WaitForMessage(ctx, req.Node.ID, messageRef, correlationKey, timeout)
	if err != nil {
		return Result{}, fmt.Errorf("receiveTask %s: %w", req.Node.ID, err)
	}

	if mapping, ok := payload.(map[string]any); ok {
		for k, v := range mapping {
			req.Scope[k] = v
		}
	} else {
		req.Scope[req.Node.ID+"_result"] = payload
	}

	return Result{}, nil
}

func stringProp(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}
