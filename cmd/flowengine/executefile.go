package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/executors"
	"github.com/flowproc/bpmnengine/workflow"
	"github.com/flowproc/bpmnengine/yamldef"
)

var executeFileCmd = &cobra.Command{
	Use:   "execute-file [workflow.yaml]",
	Short: "Run a single workflow definition to completion and print its events to the console",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecuteFile,
}

func runExecuteFile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	shutdownTracing := initTracing()
	defer func() { _ = shutdownTracing(context.Background()) }()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read workflow file: %w", err)
	}
	graph, err := yamldef.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse workflow: %w", err)
	}

	cfg, err := configFromEnv()
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	rt.broadcaster.Register(consoleObserver{logger: logger})

	registry := executors.NewRegistry(rt.deps)
	engine := workflow.NewEngine(graph, registry, rt.broadcaster)

	inst := workflow.NewInstance(uuid.NewString(), workflow.Scope{})
	return engine.Run(ctx, inst)
}

// consoleObserver logs every broadcast event, giving execute-file a
// human-readable trace without standing up a websocket client.
type consoleObserver struct {
	logger zerolog.Logger
}

func (c consoleObserver) Send(e events.Event) error {
	c.logger.Info().Str("type", e.Type).Str("elementId", e.ElementID).Msg("event")
	return nil
}
