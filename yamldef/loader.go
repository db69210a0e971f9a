package yamldef

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Unmarshal parses raw YAML bytes into a Document without validating it.
func Unmarshal(raw []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing workflow definition: %w", err)
	}
	return &doc, nil
}

// LoadFile reads a workflow-definition YAML file from disk and parses it
// into a Document without validating it or converting it to a Graph.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Unmarshal(data)
}
