package workflow

import (
	"context"

	"github.com/flowproc/bpmnengine/events"
)

// step dispatches node to the right handling per its kind: gateway
// evaluation/join, activity execution with boundaries, or event-specific
// handling. It returns the outcome, the flows the caller should recurse
// into next, and the scope those flows should carry forward.
func (e *Engine) step(ctx context.Context, inst *Instance, node *Node, viaFlowID string, scope Scope, br *branch) (stepOutcome, []Flow, Scope, error) {
	switch {
	case node.Kind.IsGateway():
		return e.stepGateway(ctx, inst, node, viaFlowID, scope, br)
	case node.Kind == KindEndEvent:
		return outcomeEnded, nil, scope, nil
	case node.Kind == KindStartEvent || node.Kind == KindIntermediate:
		return outcomeNormal, e.Graph.Outgoing(node.ID), scope, nil
	case node.Kind == KindCompThrow:
		e.runCompensationSweep(ctx, inst, scope, br)
		return outcomeNormal, e.Graph.Outgoing(node.ID), scope, nil
	case node.Kind.IsBoundary() || node.Kind.IsEvent() && isEventSubProcessTriggerKind(node.Kind):
		// Reached only via direct traversal into an event-sub-process
		// start node's container body, which callers enter through
		// Subgraph — nothing extra to do beyond following flows.
		return outcomeNormal, e.Graph.Outgoing(node.ID), scope, nil
	case node.Kind == KindSubProcess || node.Kind == KindEventSubProc:
		return e.stepSubProcess(ctx, inst, node, scope, br)
	case node.Kind == KindCallActivity:
		outcome, nexts, err := e.stepCallActivity(ctx, inst, node, scope)
		return outcome, nexts, scope, err
	default:
		if boolProp(node.Properties, "isMultiInstance") {
			outcome, nexts, err := e.runMultiInstance(ctx, inst, node, scope)
			return outcome, nexts, scope, err
		}
		if stringProp(node.Properties, "loopCondition") != "" {
			outcome, nexts, err := e.runLoopingTask(ctx, inst, node, scope, br)
			return outcome, nexts, scope, err
		}
		outcome, nexts, err := e.runTaskWithBoundaries(ctx, inst, node, scope, br)
		return outcome, nexts, scope, err
	}
}

func isEventSubProcessTriggerKind(k Kind) bool {
	return IsEventSubProcessStart(k)
}

// stepGateway evaluates an exclusive/parallel/inclusive gateway. Fork
// (single incoming edge) nodes just hand back the matched flows for
// spawnAndAwait; join (multiple incoming edges) nodes coordinate arrivals
// per §4.6 "Gateway merge semantics".
func (e *Engine) stepGateway(ctx context.Context, inst *Instance, node *Node, viaFlowID string, scope Scope, br *branch) (stepOutcome, []Flow, Scope, error) {
	e.emit(eventGatewayEvaluating(node.ID))

	incoming := e.Graph.Incoming(node.ID)
	if len(incoming) > 1 {
		proceed, mergedScope, err := e.resolveJoin(inst, node, viaFlowID, scope, br)
		if err != nil {
			return outcomeEnded, nil, scope, err
		}
		if !proceed {
			return outcomeEnded, nil, scope, nil // this arrival stops here; the winner (or the only path) continues
		}
		return outcomeNormal, e.Graph.Outgoing(node.ID), mergedScope, nil
	}

	fired, err := EvaluateGateway(node.Kind, node.ID, e.Graph.Outgoing(node.ID), scope)
	if err != nil {
		return outcomeEnded, nil, scope, err
	}
	for _, f := range fired {
		e.emit(eventGatewayPathTaken(node.ID, f.ID))
		GatewayDecisionsTotal.WithLabelValues(string(node.Kind), f.ID).Inc()
	}
	return outcomeNormal, fired, scope, nil
}

// resolveJoin implements the three join disciplines (§4.6), returning the
// reconciled scope the winning continuation should carry forward.
func (e *Engine) resolveJoin(inst *Instance, node *Node, viaFlowID string, scope Scope, br *branch) (bool, Scope, error) {
	switch node.Kind {
	case KindExclusiveGw:
		return true, scope, nil // pass-through; only one path arrives by construction
	case KindParallelGw:
		proceed, merged := e.resolveParallelJoin(inst, node, viaFlowID, scope)
		return proceed, merged, nil
	case KindInclusiveGw:
		proceed, merged := e.resolveInclusiveJoin(inst, node, scope, br)
		return proceed, merged, nil
	default:
		return true, scope, nil
	}
}

func (e *Engine) resolveParallelJoin(inst *Instance, node *Node, viaFlowID string, scope Scope) (bool, Scope) {
	ms := inst.mergeStateFor(node.ID)
	fanOut := e.matchingForkFanOut(node.ID)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.completed {
		return false, nil
	}
	ms.arrivals[viaFlowID] = true
	for k, v := range scope {
		ms.scope[k] = v
	}
	if len(ms.arrivals) < fanOut {
		return false, nil
	}
	ms.completed = true
	return true, ms.scope
}

func (e *Engine) resolveInclusiveJoin(inst *Instance, node *Node, scope Scope, br *branch) (bool, Scope) {
	ms := inst.mergeStateFor(node.ID)

	ms.mu.Lock()
	if ms.completed {
		ms.mu.Unlock()
		return false, nil
	}
	ms.completed = true
	for k, v := range scope {
		ms.scope[k] = v
	}
	merged := ms.scope
	ms.mu.Unlock()

	if fork, _ := e.matchingFork(node.ID); fork != nil {
		e.cancelForkSiblings(inst, fork.ID, br)
	}
	return true, merged
}

// cancelForkSiblings cancels every branch spawned from forkID other than
// self, broadcasting task.cancelled for each one's currently-running node
// before signalling its context, per the mandated ordering (§5).
func (e *Engine) cancelForkSiblings(inst *Instance, forkID string, self *branch) {
	for _, sib := range inst.forkBranchesFor(forkID) {
		if sib == self {
			continue
		}
		if nodeID := sib.current(); nodeID != "" {
			e.emit(events.New("task.cancelled", nodeID, map[string]any{"reason": "inclusive-join-loser"}))
			inst.ClearActiveTask(nodeID)
		}
		sib.cancel()
	}
}

// matchingFork walks backward from each of join's incoming edges along
// single-predecessor chains until it reaches a gateway with more than one
// outgoing flow (a candidate fork). When branches disagree on the nearest
// fork, the fork reached by the most branches wins; ties prefer the
// larger fan-out, then the shallower (nearer) candidate (§4.6: "when
// ambiguous, prefer the largest fan-out / shallowest depth").
func (e *Engine) matchingFork(joinID string) (*Node, int) {
	type candidate struct {
		node  *Node
		depth int
	}
	var candidates []candidate

	for _, f := range e.Graph.Incoming(joinID) {
		cur := f.From
		visited := map[string]bool{}
		depth := 0
		for {
			if visited[cur] {
				break
			}
			visited[cur] = true
			n, ok := e.Graph.Node(cur)
			if !ok {
				break
			}
			if n.Kind.IsGateway() && len(e.Graph.Outgoing(n.ID)) > 1 {
				candidates = append(candidates, candidate{n, depth})
				break
			}
			in := e.Graph.Incoming(cur)
			if len(in) != 1 {
				break
			}
			cur = in[0].From
			depth++
		}
	}
	if len(candidates) == 0 {
		return nil, 0
	}

	counts := map[string]int{}
	shallowest := map[string]candidate{}
	for _, c := range candidates {
		counts[c.node.ID]++
		if existing, ok := shallowest[c.node.ID]; !ok || c.depth < existing.depth {
			shallowest[c.node.ID] = c
		}
	}

	var winner *Node
	var winnerCount, winnerFanOut, winnerDepth int
	for id, count := range counts {
		c := shallowest[id]
		fanOut := len(e.Graph.Outgoing(c.node.ID))
		better := winner == nil ||
			count > winnerCount ||
			(count == winnerCount && fanOut > winnerFanOut) ||
			(count == winnerCount && fanOut == winnerFanOut && c.depth < winnerDepth)
		if better {
			winner, winnerCount, winnerFanOut, winnerDepth = c.node, count, fanOut, c.depth
		}
	}
	return winner, winnerFanOut
}

// matchingForkFanOut is matchingFork's fan-out, falling back to the join's
// raw incoming-edge count when no upstream fork can be identified (e.g. a
// join fed directly by independent start paths).
func (e *Engine) matchingForkFanOut(joinID string) int {
	if _, fanOut := e.matchingFork(joinID); fanOut > 0 {
		return fanOut
	}
	return len(e.Graph.Incoming(joinID))
}
