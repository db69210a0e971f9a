package workflow

import "context"

// stepSubProcess runs an inline subProcess/eventSubProcess container's
// body to completion on its own nested Graph, then lets the caller
// continue with the container node's own outgoing flows. Event
// sub-process monitors reached this way (as opposed to spawned in the
// background at instance start, §4.6 "Event sub-processes") behave as a
// plain inline container.
func (e *Engine) stepSubProcess(ctx context.Context, inst *Instance, node *Node, scope Scope, br *branch) (stepOutcome, []Flow, Scope, error) {
	sub, err := e.Graph.Subgraph(node.ID)
	if err != nil {
		return outcomeEnded, nil, scope, err
	}
	start, ok := sub.GetStartEvent()
	if !ok {
		return outcomeNormal, e.Graph.Outgoing(node.ID), scope, nil
	}

	subEngine := &Engine{Graph: sub, Runner: e.Runner, Broadcaster: e.Broadcaster, pollInterval: e.pollInterval}
	childScope := scope.Clone()
	if err := subEngine.traverse(ctx, inst, start, "", childScope, br); err != nil {
		return outcomeEnded, nil, scope, err
	}
	for k, v := range childScope {
		scope[k] = v
	}
	return outcomeNormal, e.Graph.Outgoing(node.ID), scope, nil
}

// stepCallActivity implements §4.3's callActivity executor: it looks up
// the named reusable subgraph, builds a child scope from the node's input
// mappings, runs the subgraph to completion with a fresh Instance sharing
// this Engine's Runner/Broadcaster, then applies the output mappings back
// onto the caller's scope.
func (e *Engine) stepCallActivity(ctx context.Context, inst *Instance, node *Node, scope Scope) (stepOutcome, []Flow, error) {
	calledProcess := stringProp(node.Properties, "calledElement")
	sub, ok := e.Graph.Subprocess(calledProcess)
	if !ok {
		return outcomeEnded, nil, &GraphParseError{Reason: "callActivity references unknown process " + calledProcess}
	}

	childScope := Scope{}
	for childKey, expr := range inputMappings(node.Properties) {
		v, err := EvaluateExpressionValue(expr, scope)
		if err != nil {
			v = ResolveVariables(expr, scope)
		}
		childScope[childKey] = v
	}

	childInst := NewInstance(inst.ID+"/"+node.ID, childScope)
	childEngine := &Engine{Graph: sub, Runner: e.Runner, Broadcaster: e.Broadcaster, pollInterval: e.pollInterval}
	if err := childEngine.Run(ctx, childInst); err != nil {
		return outcomeEnded, nil, err
	}

	for parentKey, childKey := range outputMappings(node.Properties) {
		scope[parentKey] = childInst.Variables[childKey]
	}
	return outcomeNormal, e.Graph.Outgoing(node.ID), nil
}

// inputMappings reads the callActivity's declared input variable mapping
// (child variable name -> source expression against the caller's scope).
func inputMappings(props map[string]any) map[string]string {
	return stringMapProp(props, "inputMapping")
}

// outputMappings reads the callActivity's declared output variable
// mapping (parent variable name -> child variable name to copy back).
func outputMappings(props map[string]any) map[string]string {
	return stringMapProp(props, "outputMapping")
}

func stringMapProp(props map[string]any, key string) map[string]string {
	out := map[string]string{}
	raw, ok := props[key].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
