package executors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/flowproc/bpmnengine/events"
	"github.com/flowproc/bpmnengine/model"
	"github.com/flowproc/bpmnengine/segment"
	"github.com/flowproc/bpmnengine/workflow"
)

// agenticConfidence is the result of one streaming model call, judged by
// the retry loop in executeAgenticTask. runStreamingCall sets Confidence to
// 1.0 for every completed call; the model output is not parsed for a
// score, so a retry happens only when confidenceThreshold exceeds 1.0.
type agenticConfidence struct {
	Confidence float64
	TokenCount int
	Text       string
}

// executeAgenticTask implements the full §4.3.1 protocol: thinking
// event, ordered tool invocations with cancellation checks between them,
// a streaming model call fed through the sentence segmenter with
// per-sentence persistence and broadcast, cooperative cancellation
// handling mid-stream, and confidence-gated retry.
func executeAgenticTask(ctx context.Context, req Request) (Result, error) {
	cancelSignal := req.Deps.Broadcaster.MarkCancellable(req.Node.ID)
	defer req.Deps.Broadcaster.ClearCancellable(req.Node.ID)

	req.Deps.Broadcaster.Broadcast(events.New("task.thinking", req.Node.ID, map[string]any{
		"message": "starting agentic task",
	}))
	threadID, err := req.Deps.Store.ThreadID(req.Node.ID)
	if err == nil {
		_ = req.Deps.Store.AppendThinking(threadID, "starting agentic task", time.Now().UTC())
	}

	if cancelled, res, err := runTools(ctx, req, cancelSignal); cancelled {
		return res, err
	}

	provider := stringProp(req.Node.Properties, "provider")
	streamer := req.Deps.Streaming[provider]
	if streamer == nil {
		return Result{}, fmt.Errorf("agenticTask %s: no streaming model configured for provider %q", req.Node.ID, provider)
	}

	maxRetries := intProp(req.Node.Properties, "maxRetries", 0)
	confidenceThreshold := floatProp(req.Node.Properties, "confidenceThreshold", 0)
	systemPrompt := stringProp(req.Node.Properties, "systemPrompt")

	var last agenticConfidence
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, cancelled, err := runStreamingCall(ctx, req, streamer, systemPrompt, cancelSignal, threadID)
		if cancelled {
			return Result{Cancelled: true, Partial: map[string]any{"text": result.Text, "tokenCount": result.TokenCount}}, nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("agenticTask %s: %w", req.Node.ID, err)
		}
		last = result
		if last.Confidence >= confidenceThreshold {
			break
		}
	}

	req.Scope[req.Node.ID+"_result"] = last.Text
	req.Scope[req.Node.ID+"_confidence"] = last.Confidence
	return Result{}, nil
}

func runTools(ctx context.Context, req Request, cancelSignal <-chan struct{}) (bool, Result, error) {
	toolNames, _ := req.Node.Properties["tools"].([]any)
	for _, tn := range toolNames {
		name, _ := tn.(string)
		t := req.Deps.Tools[name]
		if t == nil {
			continue
		}

		select {
		case <-cancelSignal:
			return true, cancelAgentic(req, "", 0), nil
		default:
		}

		threadID, _ := req.Deps.Store.ThreadID(req.Node.ID)
		args := toolArgs(req.Node.Properties, name)
		req.Deps.Broadcaster.Broadcast(events.New("task.tool.start", req.Node.ID, map[string]any{"toolName": name, "args": args}))
		if threadID != "" {
			_ = req.Deps.Store.StartToolExecution(threadID, name, args, time.Now().UTC())
		}

		var result map[string]any
		if schema, ok := toolSchema(req.Node.Properties, name); ok {
			if verr := validateToolArgs(name, schema, args); verr != nil {
				result = map[string]any{"error": verr.Error()}
			}
		}
		if result == nil {
			var err error
			result, err = t.Call(ctx, args)
			if err != nil {
				result = map[string]any{"error": err.Error()}
			}
		}

		req.Deps.Broadcaster.Broadcast(events.New("task.tool.end", req.Node.ID, map[string]any{"toolName": name, "result": result}))
		if threadID != "" {
			_ = req.Deps.Store.EndToolExecution(threadID, name, result, time.Now().UTC())
		}
	}
	return false, Result{}, nil
}

func runStreamingCall(ctx context.Context, req Request, streamer model.StreamingChatModel, systemPrompt string, cancelSignal <-chan struct{}, threadID string) (agenticConfidence, bool, error) {
	seg := segment.New()
	var full strings.Builder
	tokenCount := 0
	cancelled := false

	messages := []model.Message{{Role: "system", Content: systemPrompt}}

	onDelta := func(d model.StreamDelta) error {
		select {
		case <-cancelSignal:
			cancelled = true
			return fmt.Errorf("cancelled")
		default:
		}

		full.WriteString(d.Text)
		tokenCount++
		for _, sentence := range seg.AddChunk(d.Text) {
			emitSentence(req, threadID, sentence)
		}
		return nil
	}

	_, err := streamer.StreamChat(ctx, messages, nil, onDelta)
	if cancelled {
		req.Deps.Broadcaster.Broadcast(events.New("task.cancelling", req.Node.ID, nil))
		req.Deps.Broadcaster.Broadcast(events.New("task.cancelled", req.Node.ID, map[string]any{
			"partialResult": full.String(), "tokenCount": tokenCount,
		}))
		return agenticConfidence{Text: full.String(), TokenCount: tokenCount}, true, nil
	}
	if err != nil {
		return agenticConfidence{}, false, err
	}

	if remainder := seg.Flush(); remainder != "" {
		emitSentence(req, threadID, remainder)
	}

	return agenticConfidence{
		Confidence: 1.0,
		TokenCount: tokenCount,
		Text:       full.String(),
	}, false, nil
}

func emitSentence(req Request, threadID, sentence string) {
	messageID := uuid.NewString()
	now := time.Now().UTC()
	if threadID != "" {
		_ = req.Deps.Store.UpsertMessage(events.StoredMessage{
			MessageID: messageID, ThreadID: threadID, Role: "assistant",
			Content: sentence, Status: events.MessageComplete,
			StartedAt: now, UpdatedAt: now,
		})
	}
	req.Deps.Broadcaster.Broadcast(events.New("text.message.chunk", req.Node.ID, map[string]any{
		"messageId": messageID, "content": sentence,
	}))
}

func cancelAgentic(req Request, partial string, tokenCount int) Result {
	req.Deps.Broadcaster.Broadcast(events.New("task.cancelling", req.Node.ID, nil))
	req.Deps.Broadcaster.Broadcast(events.New("task.cancelled", req.Node.ID, map[string]any{
		"partialResult": partial, "tokenCount": tokenCount,
	}))
	return Result{Cancelled: true, Partial: map[string]any{"text": partial, "tokenCount": tokenCount}}
}

// toolArgs reads the literal call arguments a workflow author declared for
// one tool, keyed by tool name under the node's "toolArgs" property
// (§4.3.1: service-task-style tools are invoked with author-supplied
// parameters rather than ones the model improvises).
func toolArgs(props map[string]any, name string) map[string]any {
	byName, _ := props["toolArgs"].(map[string]any)
	args, _ := byName[name].(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

// toolSchema reads the JSON Schema a workflow author declared for one
// tool's arguments, keyed by tool name under the node's "toolSchemas"
// property. Its shape matches model.ToolSpec.Schema.
func toolSchema(props map[string]any, name string) (map[string]any, bool) {
	byName, _ := props["toolSchemas"].(map[string]any)
	schema, ok := byName[name].(map[string]any)
	return schema, ok
}

// validateToolArgs compiles schema and checks args against it before the
// tool is invoked, so a malformed call fails with a schema-validation
// error instead of reaching the tool implementation.
func validateToolArgs(name string, schema map[string]any, args map[string]any) error {
	resourceURL := "toolSchemas/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, schema); err != nil {
		return fmt.Errorf("tool %s: invalid schema: %w", name, err)
	}
	sch, err := compiler.Compile(resourceURL)
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", name, err)
	}
	if err := sch.Validate(args); err != nil {
		return fmt.Errorf("tool %s: arguments failed schema validation: %w", name, err)
	}
	return nil
}

func intProp(props map[string]any, key string, def int) int {
	switch v := props[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatProp(props map[string]any, key string, def float64) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
