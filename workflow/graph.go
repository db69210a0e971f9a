// Package workflow provides the core graph model, gateway evaluation, and
// execution engine for the declarative BPMN-style process runtime.
package workflow

import "fmt"

// Kind identifies the closed set of node kinds a Graph may contain.
type Kind string

// The closed set of node kinds, per the workflow-definition schema.
const (
	KindStartEvent     Kind = "startEvent"
	KindEndEvent       Kind = "endEvent"
	KindIntermediate   Kind = "intermediateEvent"
	KindTimerCatch     Kind = "timerIntermediateCatchEvent"
	KindErrorBoundary  Kind = "errorBoundaryEvent"
	KindTimerBoundary  Kind = "timerBoundaryEvent"
	KindCompBoundary   Kind = "compensationBoundaryEvent"
	KindCompThrow      Kind = "compensationIntermediateThrowEvent"
	KindErrorStart     Kind = "errorStartEvent"
	KindTimerStart     Kind = "timerStartEvent"
	KindMessageStart   Kind = "messageStartEvent"
	KindSignalStart    Kind = "signalStartEvent"
	KindEscalStart     Kind = "escalationStartEvent"
	KindCompStart      Kind = "compensationStartEvent"
	KindTask           Kind = "task"
	KindUserTask       Kind = "userTask"
	KindServiceTask    Kind = "serviceTask"
	KindScriptTask     Kind = "scriptTask"
	KindSendTask       Kind = "sendTask"
	KindReceiveTask    Kind = "receiveTask"
	KindManualTask     Kind = "manualTask"
	KindBusinessRule   Kind = "businessRuleTask"
	KindAgenticTask    Kind = "agenticTask"
	KindSubProcess     Kind = "subProcess"
	KindEventSubProc   Kind = "eventSubProcess"
	KindCallActivity   Kind = "callActivity"
	KindExclusiveGw    Kind = "exclusiveGateway"
	KindParallelGw     Kind = "parallelGateway"
	KindInclusiveGw    Kind = "inclusiveGateway"
)

// eventSubProcessStartKinds maps the trigger each eventSubProcess's start
// node carries; a subProcess is only a monitor-spawning eventSubProcess
// when its start element is one of these kinds.
var eventSubProcessStartKinds = map[Kind]bool{
	KindErrorStart:   true,
	KindTimerStart:   true,
	KindMessageStart: true,
	KindSignalStart:  true,
	KindEscalStart:   true,
	KindCompStart:    true,
}

// IsGateway reports whether k is one of the three gateway kinds.
func (k Kind) IsGateway() bool {
	return k == KindExclusiveGw || k == KindParallelGw || k == KindInclusiveGw
}

// IsEvent reports whether k is an event (as opposed to a task, gateway, or
// container).
func (k Kind) IsEvent() bool {
	switch k {
	case KindStartEvent, KindEndEvent, KindIntermediate, KindTimerCatch,
		KindErrorBoundary, KindTimerBoundary, KindCompBoundary, KindCompThrow,
		KindErrorStart, KindTimerStart, KindMessageStart, KindSignalStart,
		KindEscalStart, KindCompStart:
		return true
	}
	return false
}

// IsBoundary reports whether k attaches to an activity as a boundary event.
func (k Kind) IsBoundary() bool {
	return k == KindErrorBoundary || k == KindTimerBoundary || k == KindCompBoundary
}

// Node is one vertex of a Graph: an event, task, gateway, or container.
type Node struct {
	ID            string
	Kind          Kind
	DisplayName   string
	AttachedToRef string // set for boundary events: the task ID they attach to
	Properties    map[string]any

	// ChildElements/ChildConnections hold the body of an inline subProcess
	// or eventSubProcess node; they form a nested Graph built lazily via
	// Subgraph().
	ChildElements   []Node
	ChildConnections []Flow
}

// Flow is a directed edge between two nodes, optionally conditional.
type Flow struct {
	ID        string
	From      string
	To        string
	Name      string
	Condition string // empty means unconditional / default
}

// Graph is an immutable deserialized description of one process.
type Graph struct {
	ProcessID   string
	ProcessName string

	nodes  map[string]*Node
	byKind map[Kind][]*Node
	out    map[string][]Flow
	in     map[string][]Flow

	subprocesses map[string]*Graph

	startEventID string
}

// NewGraph builds a Graph from a flat node and flow list, plus named
// reusable subprocess definitions (referenced by callActivity nodes).
func NewGraph(processID, processName string, nodes []Node, flows []Flow, subprocesses map[string]*Graph) (*Graph, error) {
	g := &Graph{
		ProcessID:    processID,
		ProcessName:  processName,
		nodes:        make(map[string]*Node, len(nodes)),
		byKind:       make(map[Kind][]*Node),
		out:          make(map[string][]Flow),
		in:           make(map[string][]Flow),
		subprocesses: subprocesses,
	}
	if g.subprocesses == nil {
		g.subprocesses = map[string]*Graph{}
	}

	for i := range nodes {
		n := nodes[i]
		if _, exists := g.nodes[n.ID]; exists {
			return nil, &GraphParseError{Reason: fmt.Sprintf("duplicate node id %q", n.ID)}
		}
		g.nodes[n.ID] = &n
		g.byKind[n.Kind] = append(g.byKind[n.Kind], &n)
		if n.Kind == KindStartEvent {
			g.startEventID = n.ID
		}
	}

	for _, f := range flows {
		if _, ok := g.nodes[f.From]; !ok {
			return nil, &GraphParseError{Reason: fmt.Sprintf("flow %q references unknown source %q", f.ID, f.From)}
		}
		if _, ok := g.nodes[f.To]; !ok {
			return nil, &GraphParseError{Reason: fmt.Sprintf("flow %q references unknown target %q", f.ID, f.To)}
		}
		g.out[f.From] = append(g.out[f.From], f)
		g.in[f.To] = append(g.in[f.To], f)
	}

	if g.startEventID == "" && len(nodes) > 0 {
		return nil, &GraphParseError{Reason: "graph has no startEvent"}
	}

	return g, nil
}

// GetStartEvent returns the process's single start node.
func (g *Graph) GetStartEvent() (*Node, bool) {
	n, ok := g.nodes[g.startEventID]
	return n, ok
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Outgoing returns the flows leaving nodeId, in authoring order.
func (g *Graph) Outgoing(nodeID string) []Flow {
	return g.out[nodeID]
}

// Incoming returns the flows entering nodeId, in authoring order.
func (g *Graph) Incoming(nodeID string) []Flow {
	return g.in[nodeID]
}

// BoundariesAttachedTo returns every boundary event attached to the given
// activity node.
func (g *Graph) BoundariesAttachedTo(nodeID string) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Kind.IsBoundary() && n.AttachedToRef == nodeID {
			out = append(out, n)
		}
	}
	return out
}

// NodesOfKind returns every node of the given kind, for engine bootstrap
// tasks such as discovering event sub-processes.
func (g *Graph) NodesOfKind(k Kind) []*Node {
	return g.byKind[k]
}

// Subprocess looks up a named reusable subgraph by ID, for callActivity.
func (g *Graph) Subprocess(id string) (*Graph, bool) {
	s, ok := g.subprocesses[id]
	return s, ok
}

// Subgraph builds (and caches the shape of) the nested Graph formed by a
// subProcess or eventSubProcess node's ChildElements/ChildConnections.
func (g *Graph) Subgraph(containerID string) (*Graph, error) {
	n, ok := g.Node(containerID)
	if !ok {
		return nil, &GraphParseError{Reason: fmt.Sprintf("unknown container %q", containerID)}
	}
	return NewGraph(g.ProcessID+"/"+containerID, n.DisplayName, n.ChildElements, n.ChildConnections, g.subprocesses)
}

// IsEventSubProcessStart reports whether kind is one of the trigger-typed
// start events that make their container node an eventSubProcess monitor.
func IsEventSubProcessStart(k Kind) bool {
	return eventSubProcessStartKinds[k]
}
