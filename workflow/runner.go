package workflow

import "context"

// TaskRequest is what the Engine hands a TaskRunner to drive one node to
// completion. Node kinds the Engine itself understands (gateways,
// events) never reach a TaskRunner; only activities do.
type TaskRequest struct {
	Node     Node
	Scope    Scope
	Instance *Instance
}

// TaskResult is what a TaskRunner reports back.
type TaskResult struct {
	Cancelled bool
	Partial   map[string]any
}

// TaskRunner drives a single activity node to completion. Implemented by
// executors.Registry; kept as a narrow interface here so this package
// never imports the executors package (which imports this one).
type TaskRunner interface {
	Run(ctx context.Context, req TaskRequest) (TaskResult, error)
}
