package workflow

import (
	"context"
	"time"
)

// spawnEventSubProcesses starts a background monitor for every
// eventSubProcess container whose start element is one of the
// trigger-typed start kinds (§4.6 "Event sub-processes"). Monitors run
// for the life of the instance and are torn down by
// Instance.StopEventSubprocessMonitors.
func (e *Engine) spawnEventSubProcesses(ctx context.Context, inst *Instance) {
	for _, container := range e.Graph.NodesOfKind(KindEventSubProc) {
		sub, err := e.Graph.Subgraph(container.ID)
		if err != nil {
			continue
		}
		start, ok := sub.GetStartEvent()
		if !ok || !IsEventSubProcessStart(start.Kind) {
			continue
		}

		monitorCtx, cancel := context.WithCancel(ctx)
		inst.RegisterEventSubprocessMonitor(cancel)
		go e.runEventSubProcessMonitor(monitorCtx, inst, container, sub, start)
	}
}

// runEventSubProcessMonitor waits for container's trigger, then runs its
// body. errorStart containers are passive: they are never triggered here,
// only consulted by consultErrorEventSubProcess when a task's failure goes
// uncaught by its boundaries.
func (e *Engine) runEventSubProcessMonitor(ctx context.Context, inst *Instance, container *Node, sub *Graph, start *Node) {
	switch start.Kind {
	case KindTimerStart:
		dur := ParseISO8601Duration(stringProp(start.Properties, "duration"))
		select {
		case <-time.After(dur):
			e.triggerEventSubProcess(ctx, inst, container, sub, start)
		case <-ctx.Done():
		}

	case KindMessageStart, KindSignalStart, KindEscalStart:
		flag := conventionFlagKey(start)
		ticker := time.NewTicker(e.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if v, ok := inst.GlobalVariable(flag); ok && truthy(v) {
					e.triggerEventSubProcess(ctx, inst, container, sub, start)
					return
				}
			case <-ctx.Done():
				return
			}
		}

	case KindErrorStart:
		// Passive; consultErrorEventSubProcess handles this trigger.
	}
}

// triggerEventSubProcess runs container's body to completion. If
// container is isInterrupting, it first snapshots the instance's
// currently-running top-level activities, then cancels every snapshotted
// one once the body finishes (recovery before teardown, §4.6). A
// non-interrupting container runs concurrently with the main flow.
func (e *Engine) triggerEventSubProcess(ctx context.Context, inst *Instance, container *Node, sub *Graph, start *Node) {
	bodyScope := inst.Variables.Clone()
	run := func() {
		subEngine := &Engine{Graph: sub, Runner: e.Runner, Broadcaster: e.Broadcaster, pollInterval: e.pollInterval}
		_ = subEngine.traverse(ctx, inst, start, "", bodyScope, nil)
	}

	if !boolProp(container.Properties, "isInterrupting") {
		go run()
		return
	}

	snapshot := inst.ActiveTaskIDs()
	run()
	for _, nodeID := range snapshot {
		if at, ok := inst.ActiveTask(nodeID); ok {
			at.Cancel()
		}
	}
}

// conventionFlagKey builds the convention-named variable flag an event
// sub-process start event polls for, e.g. message_orderCancelled_received.
func conventionFlagKey(start *Node) string {
	switch start.Kind {
	case KindSignalStart:
		return "signal_" + stringProp(start.Properties, "signalRef") + "_received"
	case KindEscalStart:
		return "escalation_" + stringProp(start.Properties, "escalationCode") + "_received"
	default:
		return "message_" + stringProp(start.Properties, "messageRef") + "_received"
	}
}

// consultErrorEventSubProcess looks for a top-level errorStart event
// sub-process able to catch cause, runs it, and on success converts the
// failure into EventSubProcessHandled so the top-level traversal reports
// workflow success without emitting task.error (§4.6, §7).
func (e *Engine) consultErrorEventSubProcess(ctx context.Context, inst *Instance, cause error) error {
	for _, container := range e.Graph.NodesOfKind(KindEventSubProc) {
		sub, err := e.Graph.Subgraph(container.ID)
		if err != nil {
			continue
		}
		start, ok := sub.GetStartEvent()
		if !ok || start.Kind != KindErrorStart {
			continue
		}

		bodyScope := inst.Variables.Clone()
		if err := e.traverse(ctx, inst, start, "", bodyScope, nil); err != nil {
			return err
		}
		return &EventSubProcessHandled{SubProcessID: container.ID, Cause: cause}
	}
	return cause
}
