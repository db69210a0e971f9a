package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowproc/bpmnengine/events"
)

// Engine performs the depth-first graph traversal described in §4.6: it
// walks from the start event, dispatches activities to a TaskRunner,
// evaluates gateways, coordinates joins and competing-path cancellation,
// and runs event sub-process monitors and the compensation sweep.
type Engine struct {
	Graph       *Graph
	Runner      TaskRunner
	Broadcaster *events.Broadcaster

	pollInterval time.Duration // event sub-process variable-flag poll cadence
}

// NewEngine builds an Engine bound to one Graph. runner dispatches
// activity nodes (the executors.Registry bridge); broadcaster fans out
// lifecycle events. Gateway/event nodes are handled entirely within this
// package.
func NewEngine(g *Graph, runner TaskRunner, broadcaster *events.Broadcaster) *Engine {
	return &Engine{Graph: g, Runner: runner, Broadcaster: broadcaster, pollInterval: 50 * time.Millisecond}
}

// stepOutcome is what a single node's processing reports to its caller.
type stepOutcome int

const (
	outcomeNormal stepOutcome = iota
	outcomeCancelled
	outcomeEnded
)

// branch is one concurrently-traversed path spawned from a fork point
// (a gateway or any node with several outgoing flows). Engine tracks the
// currently-executing node per branch so a sibling cancellation can emit
// task.cancelled before signalling the branch's context (§4.6
// "Competing-path cancellation").
type branch struct {
	flowID string // the fork's outgoing flow this branch followed
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	currentNode string
}

func (b *branch) setCurrent(nodeID string) {
	b.mu.Lock()
	b.currentNode = nodeID
	b.mu.Unlock()
}

func (b *branch) current() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentNode
}

// emit broadcasts event if this Engine has a Broadcaster configured; a nil
// Broadcaster is valid for unit tests that only exercise pure control
// flow.
func (e *Engine) emit(event events.Event) {
	if e.Broadcaster != nil {
		e.Broadcaster.Broadcast(event)
	}
}

// Run traverses the graph from its start event for inst until every path
// has ended, a failure propagates uncaught, or ctx is cancelled. It also
// spawns event sub-process monitors for the life of the run.
func (e *Engine) Run(ctx context.Context, inst *Instance) (err error) {
	start, ok := e.Graph.GetStartEvent()
	if !ok {
		return &GraphParseError{Reason: "graph has no startEvent"}
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runCtx, span := tracer.Start(runCtx, "workflow.run", trace.WithAttributes(
		attribute.String("instanceId", inst.ID),
		attribute.String("processId", e.Graph.ProcessID),
	))
	defer span.End()

	e.spawnEventSubProcesses(runCtx, inst)
	defer inst.StopEventSubprocessMonitors()

	e.emit(events.New("workflow.started", "", map[string]any{"instanceId": inst.ID}))

	InstancesActive.Inc()
	defer InstancesActive.Dec()

	startedAt := time.Now()
	runErr := e.traverse(runCtx, inst, start, "", inst.Variables, nil)

	outcome := "success"
	switch {
	case runErr == nil:
		outcome = "success"
	case errors.Is(runErr, context.Canceled):
		outcome = "cancelled"
		runErr = nil
	default:
		var handled *EventSubProcessHandled
		if errors.As(runErr, &handled) {
			outcome = "success"
			runErr = nil
		} else {
			outcome = "failed"
			recordErr(span, runErr)
		}
	}

	e.emit(events.New("workflow.completed", "", map[string]any{
		"outcome": outcome, "durationMs": time.Since(startedAt).Milliseconds(),
	}))
	InstancesCompletedTotal.WithLabelValues(outcome).Inc()
	return runErr
}

// traverse processes node and, on normal completion, recurses into its
// successors (§4.6 Traversal). viaFlowID is the flow used to reach node,
// needed by join gateways to key arrivals by path identity; scope is this
// path's private variable view (single-writer-per-path, §5), merged back
// into the shared scope at the next join; br is the enclosing
// concurrently-spawned branch, if node was reached inside one (nil at the
// top level, before the first fork).
func (e *Engine) traverse(ctx context.Context, inst *Instance, node *Node, viaFlowID string, scope Scope, br *branch) error {
	ctx, span := tracer.Start(ctx, "node."+string(node.Kind), trace.WithAttributes(
		attribute.String("nodeId", node.ID),
	))
	defer span.End()

	if br != nil {
		br.setCurrent(node.ID)
	}
	e.emit(events.New("element.activated", node.ID, map[string]any{
		"kind": string(node.Kind), "name": node.DisplayName,
	}))
	NodesActivatedTotal.WithLabelValues(string(node.Kind)).Inc()

	started := time.Now()
	outcome, nexts, nextScope, err := e.step(ctx, inst, node, viaFlowID, scope, br)
	if err != nil {
		recordErr(span, err)
		return err
	}
	if outcome == outcomeCancelled {
		return nil
	}
	e.emit(events.New("element.completed", node.ID, map[string]any{
		"durationMs": time.Since(started).Milliseconds(),
	}))
	NodesCompletedTotal.WithLabelValues(string(node.Kind)).Inc()
	if outcome == outcomeEnded || len(nexts) == 0 {
		return nil
	}

	if len(nexts) == 1 {
		nextNode, ok := e.Graph.Node(nexts[0].To)
		if !ok {
			return &GraphParseError{Reason: fmt.Sprintf("flow %q targets unknown node %q", nexts[0].ID, nexts[0].To)}
		}
		return e.traverse(ctx, inst, nextNode, nexts[0].ID, nextScope, br)
	}

	return e.spawnAndAwait(ctx, inst, node.ID, nexts, nextScope)
}

// spawnAndAwait forks one branch per flow in nexts, runs them
// concurrently, and waits for all of them (§4.6 step 4: "spawn cooperative
// tasks and await all, absorbing cancellation of sibling paths as
// expected"). Each branch gets its own clone of scope so concurrent
// writes never race; a join reconciles the clones back together.
func (e *Engine) spawnAndAwait(ctx context.Context, inst *Instance, forkID string, nexts []Flow, scope Scope) error {
	branches := make([]*branch, len(nexts))
	for i, f := range nexts {
		bctx, cancel := context.WithCancel(ctx)
		branches[i] = &branch{flowID: f.ID, ctx: bctx, cancel: cancel}
	}
	inst.registerForkBranches(forkID, branches)
	defer inst.clearForkBranches(forkID)

	var wg sync.WaitGroup
	errs := make([]error, len(nexts))
	for i, f := range nexts {
		nextNode, ok := e.Graph.Node(f.To)
		if !ok {
			errs[i] = &GraphParseError{Reason: fmt.Sprintf("flow %q targets unknown node %q", f.ID, f.To)}
			continue
		}
		wg.Add(1)
		go func(i int, f Flow, nextNode *Node, br *branch) {
			defer wg.Done()
			errs[i] = e.traverse(br.ctx, inst, nextNode, f.ID, scope.Clone(), br)
		}(i, f, nextNode, branches[i])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
