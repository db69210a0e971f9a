package workflow

import "github.com/flowproc/bpmnengine/events"

func eventGatewayEvaluating(nodeID string) events.Event {
	return events.New("gateway.evaluating", nodeID, nil)
}

func eventGatewayPathTaken(nodeID, flowID string) events.Event {
	return events.New("gateway.path_taken", nodeID, map[string]any{"flowId": flowID})
}

// stringProp reads a string-typed property, defaulting to "".
func stringProp(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}

// boolProp reads a bool-typed property, defaulting to false.
func boolProp(props map[string]any, key string) bool {
	if props == nil {
		return false
	}
	b, _ := props[key].(bool)
	return b
}

// intProp reads a property coercible to int, defaulting to 0.
func intProp(props map[string]any, key string) int {
	if props == nil {
		return 0
	}
	switch v := props[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
