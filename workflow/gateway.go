package workflow

// EvaluateGateway implements §4.2: given a gateway node's kind and its
// outgoing flows, decide which flows fire against the live scope.
func EvaluateGateway(kind Kind, nodeID string, outgoing []Flow, scope Scope) ([]Flow, error) {
	switch kind {
	case KindExclusiveGw:
		return evaluateExclusive(nodeID, outgoing, scope)
	case KindParallelGw:
		return outgoing, nil
	case KindInclusiveGw:
		return evaluateInclusive(nodeID, outgoing, scope)
	default:
		return nil, &GraphParseError{Reason: "not a gateway kind: " + string(kind)}
	}
}

// evaluateExclusive fires the first flow whose condition is truthy, in
// authoring order; absent a match, the first flow with an empty condition
// is the default; absent both, the gateway fails.
func evaluateExclusive(nodeID string, outgoing []Flow, scope Scope) ([]Flow, error) {
	var defaultFlow *Flow
	for i := range outgoing {
		f := outgoing[i]
		if f.Condition == "" {
			if defaultFlow == nil {
				defaultFlow = &f
			}
			continue
		}
		if EvaluateCondition(f.Condition, scope) {
			return []Flow{f}, nil
		}
	}
	if defaultFlow != nil {
		return []Flow{*defaultFlow}, nil
	}
	return nil, &GatewayNoMatch{NodeID: nodeID}
}

// evaluateInclusive fires every flow whose condition is truthy plus every
// unconditional flow; failing that, the gateway fails.
func evaluateInclusive(nodeID string, outgoing []Flow, scope Scope) ([]Flow, error) {
	var fired []Flow
	for _, f := range outgoing {
		if f.Condition == "" || EvaluateCondition(f.Condition, scope) {
			fired = append(fired, f)
		}
	}
	if len(fired) == 0 {
		return nil, &GatewayNoMatch{NodeID: nodeID}
	}
	return fired, nil
}
