package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/flowproc/bpmnengine/events"
)

// taskOutcome is what the background activity goroutine reports.
type taskOutcome struct {
	result TaskResult
	err    error
}

// timerFire is what a boundary timer goroutine reports when it elapses.
type timerFire struct {
	boundary     *Node
	interrupting bool
}

// runTaskWithBoundaries drives one activity node through its TaskRunner
// while composing the boundary events attached to it (§4.6 "Boundary
// events on a task"): compensation boundaries register only; error
// boundaries form a synchronous catch table consulted when the activity
// fails; timer boundaries race the activity and, if interrupting, win the
// race and replace the activity's own continuation.
func (e *Engine) runTaskWithBoundaries(ctx context.Context, inst *Instance, node *Node, scope Scope, br *branch) (stepOutcome, []Flow, error) {
	var errorBoundaries, timerBoundaries, compBoundaries []*Node
	for _, b := range e.Graph.BoundariesAttachedTo(node.ID) {
		switch b.Kind {
		case KindErrorBoundary:
			errorBoundaries = append(errorBoundaries, b)
		case KindTimerBoundary:
			timerBoundaries = append(timerBoundaries, b)
		case KindCompBoundary:
			compBoundaries = append(compBoundaries, b)
		}
	}

	taskCtx, cancelTask := context.WithCancel(ctx)
	defer cancelTask()

	done := make(chan taskOutcome, 1)
	inst.RegisterActiveTask(&ActiveTask{NodeID: node.ID, Cancel: cancelTask, Done: taskCtx.Done()})
	go func() {
		res, err := e.runActivity(taskCtx, inst, node, scope)
		done <- taskOutcome{res, err}
	}()

	timerCtx, cancelTimers := context.WithCancel(ctx)
	defer cancelTimers()
	timerCh := make(chan timerFire, len(timerBoundaries))
	for _, tb := range timerBoundaries {
		go e.watchTimerBoundary(timerCtx, tb, timerCh)
	}

	for {
		select {
		case to := <-done:
			cancelTimers()
			inst.ClearActiveTask(node.ID)
			if to.err != nil {
				// A rejected user task is not a failure: its decision is
				// already in scope, so the task's outgoing flow continues.
				if _, rejected := to.err.(*UserTaskRejected); !rejected {
					if nexts, caught := e.catchError(node, errorBoundaries, scope, to.err); caught {
						return outcomeNormal, nexts, nil
					}
					return outcomeEnded, nil, e.consultErrorEventSubProcess(ctx, inst, to.err)
				}
			}
			if !to.result.Cancelled {
				for _, cb := range compBoundaries {
					inst.RegisterCompensation(node.ID, cb.ID)
				}
			}
			return outcomeNormal, e.Graph.Outgoing(node.ID), nil

		case fire := <-timerCh:
			if fire.interrupting {
				cancelTask()
				<-done
				cancelTimers()
				inst.ClearActiveTask(node.ID)
				return e.fireBoundary(fire.boundary)
			}
			go e.runBoundaryConcurrently(ctx, inst, fire.boundary, scope, br)

		case <-ctx.Done():
			cancelTask()
			cancelTimers()
			<-done
			inst.ClearActiveTask(node.ID)
			return outcomeCancelled, nil, ctx.Err()
		}
	}
}

// watchTimerBoundary sleeps the boundary's parsed duration and reports a
// firing unless ctx is cancelled first (the task finished, or another
// interrupting timer already won the race).
func (e *Engine) watchTimerBoundary(ctx context.Context, boundary *Node, out chan<- timerFire) {
	dur := ParseISO8601Duration(stringProp(boundary.Properties, "duration"))
	select {
	case <-time.After(dur):
		select {
		case out <- timerFire{boundary: boundary, interrupting: boolProp(boundary.Properties, "cancelActivity")}:
		case <-ctx.Done():
		}
	case <-ctx.Done():
	}
}

// fireBoundary emits a boundary node's activated/completed pair and hands
// back its outgoing flows for the caller (runTaskWithBoundaries, on an
// interrupting timer) to traverse in place of the task's own flow.
func (e *Engine) fireBoundary(boundary *Node) (stepOutcome, []Flow, error) {
	e.emit(events.New("element.activated", boundary.ID, map[string]any{
		"kind": string(boundary.Kind), "name": boundary.DisplayName,
	}))
	e.emit(events.New("element.completed", boundary.ID, map[string]any{"durationMs": int64(0)}))
	return outcomeNormal, e.Graph.Outgoing(boundary.ID), nil
}

// runBoundaryConcurrently traverses a non-interrupting boundary's
// outgoing flow on its own branch while the guarded activity keeps
// running.
func (e *Engine) runBoundaryConcurrently(ctx context.Context, inst *Instance, boundary *Node, scope Scope, br *branch) {
	_, _, _ = e.fireBoundary(boundary)
	for _, f := range e.Graph.Outgoing(boundary.ID) {
		next, ok := e.Graph.Node(f.To)
		if !ok {
			continue
		}
		if err := e.traverse(ctx, inst, next, f.ID, scope.Clone(), br); err != nil {
			e.emit(events.New("task.error", boundary.ID, map[string]any{
				"error": map[string]any{"message": err.Error()}, "retryable": false,
			}))
		}
	}
}

// catchError matches err against node's attached error boundaries: an
// empty errorCode catches everything; otherwise the boundary catches when
// errorCode matches the error's type name or is a substring of its
// message. On a catch, error metadata is recorded in the failing path's
// scope under {boundaryId}_errorType/{boundaryId}_errorMessage and the
// boundary's activated/completed pair is emitted.
func (e *Engine) catchError(node *Node, boundaries []*Node, scope Scope, err error) ([]Flow, bool) {
	for _, b := range boundaries {
		code := stringProp(b.Properties, "errorCode")
		if code != "" && !strings.Contains(errorKindName(err), code) && !strings.Contains(err.Error(), code) {
			continue
		}

		e.emit(events.New("element.activated", b.ID, map[string]any{
			"kind": string(b.Kind), "name": b.DisplayName,
		}))
		scope[b.ID+"_errorType"] = errorKindName(err)
		scope[b.ID+"_errorMessage"] = err.Error()
		e.emit(events.New("element.completed", b.ID, map[string]any{"durationMs": int64(0)}))

		return e.Graph.Outgoing(b.ID), true
	}
	return nil, false
}

// errorKindName returns a short discriminator for err's concrete type,
// used for catch-table matching against a boundary's declared errorCode.
func errorKindName(err error) string {
	switch err.(type) {
	case *ScriptFailure:
		return "ScriptFailure"
	case *ToolFailure:
		return "ToolFailure"
	case *MessageTimeout:
		return "MessageTimeout"
	case *GatewayNoMatch:
		return "GatewayNoMatch"
	default:
		return "Error"
	}
}
