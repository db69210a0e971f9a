package main

import (
	"context"
	"fmt"

	"github.com/flowproc/bpmnengine/bus"
	"github.com/flowproc/bpmnengine/email"
	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/executors"
	"github.com/flowproc/bpmnengine/model"
	"github.com/flowproc/bpmnengine/model/anthropic"
	"github.com/flowproc/bpmnengine/model/bedrock"
	"github.com/flowproc/bpmnengine/model/google"
	"github.com/flowproc/bpmnengine/model/openai"
	"github.com/flowproc/bpmnengine/tool"
	transporthttp "github.com/flowproc/bpmnengine/transport/http"
	"github.com/flowproc/bpmnengine/workflow"
)

// runtime bundles the shared collaborators one process-wide instance
// assembles once: the message bus, the persistent event store, and the
// broadcaster that fans observer events out over it.
type runtime struct {
	bus         *bus.Bus
	store       events.Store
	broadcaster *events.Broadcaster
	deps        executors.Deps
}

func newStore(cfg config) (events.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return events.NewSQLiteStore(cfg.StorePath)
	case "mysql":
		return events.NewMySQLStore(cfg.StoreDSN)
	default:
		return events.NewMemStore(), nil
	}
}

func newModels(ctx context.Context, cfg config) (map[string]model.ChatModel, map[string]model.StreamingChatModel, error) {
	models := make(map[string]model.ChatModel)
	streaming := make(map[string]model.StreamingChatModel)

	if cfg.AnthropicAPIKey != "" {
		m := anthropic.NewChatModel(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		models["anthropic"] = m
		streaming["anthropic"] = m
	}
	if cfg.OpenAIAPIKey != "" {
		m := openai.NewChatModel(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		models["openai"] = m
		streaming["openai"] = m
	}
	if cfg.GoogleAPIKey != "" {
		m := google.NewChatModel(cfg.GoogleAPIKey, cfg.GoogleModel)
		models["google"] = m
		streaming["google"] = m
	}
	if cfg.BedrockRegion != "" {
		m, err := bedrock.NewChatModel(ctx, cfg.BedrockRegion, cfg.BedrockModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bedrock: %w", err)
		}
		models["bedrock"] = m
		streaming["bedrock"] = m
	}
	return models, streaming, nil
}

// newRuntime assembles every shared collaborator the engine and the
// transport surfaces need, following the teacher's convention of
// building every dependency explicitly in one place rather than through
// a service locator.
func newRuntime(ctx context.Context, cfg config) (*runtime, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("event store: %w", err)
	}

	broadcaster := events.NewBroadcaster()
	broadcaster.SetStore(store)

	messageBus := bus.New()

	models, streaming, err := newModels(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tools := map[string]tool.Tool{
		"http_request": tool.NewHTTPTool(),
	}

	var sender executors.EmailSender
	if cfg.Email.Host != "" {
		sender = email.NewSender(cfg.Email)
	}

	deps := executors.Deps{
		Bus:         messageBus,
		Broadcaster: broadcaster,
		Store:       store,
		Models:      models,
		Streaming:   streaming,
		Tools:       tools,
		Email:       sender,
	}

	return &runtime{bus: messageBus, store: store, broadcaster: broadcaster, deps: deps}, nil
}

// engineFactory closes over the runtime's shared dependencies and
// builds a fresh workflow.Engine (and its backing executors.Registry)
// per instance, matching transport/http.EngineFactory's signature so
// the HTTP execution surface never needs to know how an Engine is put
// together.
func (rt *runtime) engineFactory() transporthttp.EngineFactory {
	return func(g *workflow.Graph) transporthttp.Engine {
		registry := executors.NewRegistry(rt.deps)
		return workflow.NewEngine(g, registry, rt.broadcaster)
	}
}
