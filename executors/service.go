package executors

import (
	"context"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/workflow"
)

// executeServiceTask implements both sub-forms from §4.3: "external-topic"
// publishes an abstract work item to the bus and completes immediately;
// "expression" evaluates a templated string into a result variable.
func executeServiceTask(ctx context.Context, req Request) (Result, error) {
	form := stringProp(req.Node.Properties, "form")
	if form == "" {
		form = "expression"
	}

	switch form {
	case "external-topic":
		topic := stringProp(req.Node.Properties, "topic")
		payload := map[string]any{"nodeId": req.Node.ID, "variables": map[string]any(req.Scope.Clone())}
		req.Deps.Bus.Publish(topic, "", payload)
		req.Deps.Broadcaster.Broadcast(events.New("task.progress", req.Node.ID, map[string]any{
			"status": "published", "topic": topic,
		}))
		return Result{}, nil

	default: // "expression"
		expr := stringProp(req.Node.Properties, "expression")
		resultVar := stringProp(req.Node.Properties, "resultVariable")
		if resultVar == "" {
			resultVar = req.Node.ID + "_result"
		}
		resolved := workflow.ResolveVariables(expr, req.Scope)
		req.Scope[resultVar] = resolved
		return Result{}, nil
	}
}
