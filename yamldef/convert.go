package yamldef

import (
	"fmt"

	"github.com/flowproc/bpmnengine/workflow"
)

// ToGraph converts a validated Document into a workflow.Graph, resolving
// subProcessDefinitions into the named subgraph map callActivity elements
// reference by ID.
func ToGraph(doc *Document) (*workflow.Graph, error) {
	subprocesses := make(map[string]*workflow.Graph, len(doc.Process.SubProcessDefinitions))
	for _, sp := range doc.Process.SubProcessDefinitions {
		nodes := make([]workflow.Node, len(sp.Elements))
		for i, el := range sp.Elements {
			nodes[i] = elementToNode(el)
		}
		flows := connectionsToFlows(sp.Connections)
		g, err := workflow.NewGraph(sp.ID, sp.Name, nodes, flows, nil)
		if err != nil {
			return nil, fmt.Errorf("subProcessDefinition %q: %w", sp.ID, err)
		}
		subprocesses[sp.ID] = g
	}

	nodes := make([]workflow.Node, len(doc.Process.Elements))
	for i, el := range doc.Process.Elements {
		nodes[i] = elementToNode(el)
	}
	flows := connectionsToFlows(doc.Process.Connections)

	g, err := workflow.NewGraph(doc.Process.ID, doc.Process.Name, nodes, flows, subprocesses)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Parse validates raw and converts it into a workflow.Graph in one step —
// the entry point cmd/flowengine and the execute-file HTTP handler use.
func Parse(raw []byte) (*workflow.Graph, error) {
	doc, err := Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return ToGraph(doc)
}

func elementToNode(el Element) workflow.Node {
	n := workflow.Node{
		ID:            el.ID,
		Kind:          workflow.Kind(el.Type),
		DisplayName:   el.Name,
		AttachedToRef: el.AttachedToRef,
		Properties:    el.Properties,
	}
	if len(el.ChildElements) > 0 {
		n.ChildElements = make([]workflow.Node, len(el.ChildElements))
		for i, child := range el.ChildElements {
			n.ChildElements[i] = elementToNode(child)
		}
	}
	if len(el.ChildConnections) > 0 {
		n.ChildConnections = connectionsToFlows(el.ChildConnections)
	}
	return n
}

func connectionsToFlows(conns []Connection) []workflow.Flow {
	flows := make([]workflow.Flow, len(conns))
	for i, c := range conns {
		flows[i] = workflow.Flow{
			ID:        fmt.Sprintf("%s->%s#%d", c.From, c.To, i),
			From:      c.From,
			To:        c.To,
			Name:      c.Name,
			Condition: c.condition(),
		}
	}
	return flows
}
