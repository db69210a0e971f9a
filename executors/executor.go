// Package executors implements the Task Executor Registry (C3): given a
// node kind, look up the handler that drives a single node to
// completion, yielding progress.
package executors

import (
	"context"
	"fmt"

	"github.com/flowproc/bpmnengine/bus"
	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/model"
	"github.com/flowproc/bpmnengine/tool"
	"github.com/flowproc/bpmnengine/workflow"
)

// Deps bundles the collaborators every executor needs, grounded on the
// teacher's convention of threading explicit dependencies through a
// context-like struct rather than a global registry.
type Deps struct {
	Bus         *bus.Bus
	Broadcaster *events.Broadcaster
	Store       events.Store
	Models      map[string]model.ChatModel
	Streaming   map[string]model.StreamingChatModel
	Tools       map[string]tool.Tool
	Email       EmailSender
}

// Request is the input to a single node's executor invocation.
type Request struct {
	Node     workflow.Node
	Scope    workflow.Scope
	Instance *workflow.Instance
	Deps     Deps
}

// Result is what an executor produces. Variables are mutated in place on
// the shared Scope (single-writer-path discipline, §5); Result only
// carries completion metadata.
type Result struct {
	Cancelled bool
	Partial   map[string]any
}

// Executor drives one node kind to completion, emitting progress events
// via Deps.Broadcaster/Deps.Store as it goes.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Func adapts a plain function to the Executor interface, the same
// function-adapter idiom the teacher uses for NodeFunc.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Execute(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Registry looks up an Executor by node kind.
type Registry struct {
	deps   Deps
	byKind map[workflow.Kind]Executor
}

// NewRegistry builds the registry with every task-kind executor wired
// (§4.3).
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, byKind: make(map[workflow.Kind]Executor)}

	r.byKind[workflow.KindTask] = Func(executeMinimal("task"))
	r.byKind[workflow.KindManualTask] = Func(executeMinimal("manualTask"))
	r.byKind[workflow.KindBusinessRule] = Func(executeMinimal("businessRuleTask"))
	r.byKind[workflow.KindUserTask] = Func(executeUserTask)
	r.byKind[workflow.KindReceiveTask] = Func(executeReceiveTask)
	r.byKind[workflow.KindSendTask] = Func(executeSendTask)
	r.byKind[workflow.KindScriptTask] = Func(executeScriptTask)
	r.byKind[workflow.KindServiceTask] = Func(executeServiceTask)
	r.byKind[workflow.KindAgenticTask] = Func(executeAgenticTask)
	r.byKind[workflow.KindTimerCatch] = Func(executeTimer)

	return r
}

// Lookup returns the executor registered for kind.
func (r *Registry) Lookup(kind workflow.Kind) (Executor, error) {
	ex, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no executor registered for node kind %q", kind)
	}
	return ex, nil
}

// Run implements workflow.TaskRunner: it looks up the executor for
// req.Node.Kind, supplies the Deps this Registry was constructed with,
// and adapts the result back to the workflow package's vocabulary. This
// is the one-directional bridge that lets workflow.Engine drive
// kind-specific executors without the workflow package importing
// executors (which itself imports workflow).
func (r *Registry) Run(ctx context.Context, req workflow.TaskRequest) (workflow.TaskResult, error) {
	ex, err := r.Lookup(req.Node.Kind)
	if err != nil {
		return workflow.TaskResult{}, err
	}
	res, err := ex.Execute(ctx, Request{Node: req.Node, Scope: req.Scope, Instance: req.Instance, Deps: r.deps})
	return workflow.TaskResult{Cancelled: res.Cancelled, Partial: res.Partial}, err
}

// executeMinimal builds the executor for manualTask/businessRuleTask/task
// (§4.3): emit progress, complete promptly.
func executeMinimal(kind string) func(ctx context.Context, req Request) (Result, error) {
	return func(ctx context.Context, req Request) (Result, error) {
		req.Deps.Broadcaster.Broadcast(events.New("task.progress", req.Node.ID, map[string]any{
			"kind": kind, "fraction": 1.0,
		}))
		return Result{}, nil
	}
}
