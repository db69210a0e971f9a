package workflow

import "context"

// runActivity dispatches a single activity node to the configured
// TaskRunner (the executors.Registry bridge), with scope as the variable
// view the executor may mutate in place (single-writer-per-path, §5).
func (e *Engine) runActivity(ctx context.Context, inst *Instance, node *Node, scope Scope) (TaskResult, error) {
	if e.Runner == nil {
		return TaskResult{}, &GraphParseError{Reason: "no TaskRunner configured for node kind " + string(node.Kind)}
	}
	return e.Runner.Run(ctx, TaskRequest{Node: *node, Scope: scope, Instance: inst})
}
