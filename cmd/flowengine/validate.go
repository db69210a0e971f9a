package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowproc/bpmnengine/yamldef"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Parse and validate a workflow definition without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read workflow file: %w", err)
	}
	graph, err := yamldef.Parse(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "valid: process %q (%s)\n", graph.ProcessName, graph.ProcessID)
	return nil
}
