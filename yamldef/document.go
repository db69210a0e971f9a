// Package yamldef parses and validates the YAML workflow-definition
// format (§6) into a workflow.Graph. It is a narrow, out-of-core
// interface layer: nothing in workflow/ or executors/ imports it back.
package yamldef

// Document is the root of a workflow-definition YAML file.
type Document struct {
	Process Process `yaml:"process" validate:"required"`
}

// Process describes one BPMN-style process definition.
type Process struct {
	ID                    string                 `yaml:"id" validate:"required"`
	Name                  string                 `yaml:"name" validate:"required"`
	Pools                 []string               `yaml:"pools,omitempty"`
	Elements              []Element              `yaml:"elements" validate:"required,min=1,dive"`
	Connections           []Connection           `yaml:"connections" validate:"dive"`
	SubProcessDefinitions []SubProcessDefinition `yaml:"subProcessDefinitions,omitempty" validate:"dive"`
}

// Element is one node of the graph: an event, task, gateway, or
// container. Type is validated against the closed node-kind enum in
// validate.go.
type Element struct {
	ID              string                 `yaml:"id" validate:"required"`
	Type            string                 `yaml:"type" validate:"required,nodekind"`
	Name            string                 `yaml:"name,omitempty"`
	AttachedToRef   string                 `yaml:"attachedToRef,omitempty"`
	Properties      map[string]any         `yaml:"properties,omitempty"`
	ChildElements   []Element              `yaml:"childElements,omitempty" validate:"dive"`
	ChildConnections []Connection          `yaml:"childConnections,omitempty" validate:"dive"`
}

// Connection is a directed edge between two elements.
type Connection struct {
	From       string         `yaml:"from" validate:"required"`
	To         string         `yaml:"to" validate:"required"`
	Type       string         `yaml:"type,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// SubProcessDefinition is a reusable subgraph referenced by callActivity
// elements elsewhere in the document.
type SubProcessDefinition struct {
	ID          string       `yaml:"id" validate:"required"`
	Name        string       `yaml:"name,omitempty"`
	Elements    []Element    `yaml:"elements" validate:"required,min=1,dive"`
	Connections []Connection `yaml:"connections" validate:"dive"`
}

// condition reads the connection's condition expression out of its
// free-form properties bag, where the YAML schema nests it (§6).
func (c Connection) condition() string {
	if c.Properties == nil {
		return ""
	}
	v, _ := c.Properties["condition"].(string)
	return v
}
