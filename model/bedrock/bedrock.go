// Package bedrock provides a model.ChatModel adapter for AWS Bedrock
// runtime-hosted models (Anthropic/Meta/Amazon models served via Bedrock).
package bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/flowproc/bpmnengine/model"
)

// ChatModel implements model.ChatModel and model.StreamingChatModel against
// a Bedrock runtime endpoint using the Anthropic Messages wire format, which
// Bedrock accepts directly for claude-family model IDs.
type ChatModel struct {
	modelID string
	region  string
	client  *bedrockruntime.Client
}

// NewChatModel creates a Bedrock-backed chat model. region follows the
// standard AWS region naming (e.g. "us-east-1"); credentials are resolved
// from the default AWS credential chain.
func NewChatModel(ctx context.Context, region, modelID string) (*ChatModel, error) {
	if modelID == "" {
		modelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: loading AWS config: %w", err)
	}
	return &ChatModel{
		modelID: modelID,
		region:  region,
		client:  bedrockruntime.NewFromConfig(cfg),
	}, nil
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (m *ChatModel) buildRequest(messages []model.Message) bedrockRequest {
	req := bedrockRequest{AnthropicVersion: "bedrock-2023-05-31", MaxTokens: 4096}
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += msg.Content
			continue
		}
		req.Messages = append(req.Messages, bedrockMessage{Role: msg.Role, Content: msg.Content})
	}
	return req
}

// Chat implements model.ChatModel via a single InvokeModel call.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}
	body, err := json.Marshal(m.buildRequest(messages))
	if err != nil {
		return model.ChatOut{}, err
	}

	resp, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &m.modelID,
		ContentType: stringPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("bedrock InvokeModel: %w", err)
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return model.ChatOut{}, fmt.Errorf("bedrock: decoding response: %w", err)
	}

	var out model.ChatOut
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out.Text += block.Text
		}
	}
	return out, nil
}

// StreamChat implements model.StreamingChatModel via InvokeModelWithResponseStream.
func (m *ChatModel) StreamChat(ctx context.Context, messages []model.Message, _ []model.ToolSpec, onDelta func(model.StreamDelta) error) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}
	body, err := json.Marshal(m.buildRequest(messages))
	if err != nil {
		return model.ChatOut{}, err
	}

	resp, err := m.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     &m.modelID,
		ContentType: stringPtr("application/json"),
		Body:        body,
	})
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("bedrock InvokeModelWithResponseStream: %w", err)
	}

	var out model.ChatOut
	stream := resp.GetStream()
	defer func() { _ = stream.Close() }()
	for event := range stream.Events() {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var piece struct {
			Delta struct {
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := json.NewDecoder(bytes.NewReader(chunk.Value.Bytes)).Decode(&piece); err != nil {
			continue
		}
		if piece.Delta.Text == "" {
			continue
		}
		out.Text += piece.Delta.Text
		if err := onDelta(model.StreamDelta{Text: piece.Delta.Text}); err != nil {
			return out, err
		}
	}
	if err := stream.Err(); err != nil {
		return out, fmt.Errorf("bedrock streaming error: %w", err)
	}
	if err := onDelta(model.StreamDelta{Done: true}); err != nil {
		return out, err
	}
	return out, nil
}

func stringPtr(s string) *string { return &s }
