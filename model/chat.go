// Package model provides the provider adapters an agenticTask node (§4.3.1)
// calls through: Anthropic, OpenAI, Gemini, and Bedrock each implement
// ChatModel/StreamingChatModel, selected per node by the "provider"
// property and looked up in Deps.Streaming.
package model

import "context"

// ChatModel defines the interface for an agenticTask node's model
// provider.
//
// This interface abstracts the differences between providers (OpenAI,
// Anthropic, Google, AWS Bedrock) behind a single API so executors/agentic.go
// never imports a provider SDK directly — it only depends on this
// interface plus the provider registered in Deps.Streaming for the node's
// "provider" property.
//
// Implementations should:
// - Handle provider-specific authentication.
// - Convert standard Message format to provider-specific format.
// - Parse provider responses back to standard ChatOut format.
// - Respect context cancellation and timeouts.
// - Handle retries and rate limiting appropriately.
//
// Example usage:
//
// model := anthropic.NewChatModel(apiKey, "").
// messages := []Message{.
//
//		    {Role: RoleUser, Content: "Summarize the last three support tickets."},
//	}.
//
// out, err := model.Chat(ctx, messages, nil).
// if err != nil {.
// log.Fatal(err).
// }.
// fmt.Println(out.Text).
//
// Example with tools declared on the agenticTask node:
//
// tools := []ToolSpec{.
// {.
//
//	Name:        "account_lookup",
//	Description: "Look up an account's current status and balance",
//
// Schema: map[string]interface{}{.
//
//	"type": "object",
//
// "properties": map[string]interface{}{.
// "accountId": map[string]interface{}{.
//
//		                    "type":        "string",
//		                    "description": "Account identifier",
//		                },
//		            },
//		        },
//		    },
//	}.
//
// out, err := model.Chat(ctx, messages, tools).
// if err != nil {.
// log.Fatal(err).
// }.
// for _, call := range out.ToolCalls {.
// fmt.Printf("Tool: %s, Input: %v\n", call.Name, call.Input).
// }.
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response.
	//
	// Parameters:
	// - ctx: Context for cancellation and timeout control.
	// - messages: Conversation history (system, user, assistant messages).
	// - tools: Optional tool specifications the LLM can use (nil if no tools).
	//
	// Returns:
	// - ChatOut: LLM response containing text and/or tool calls.
	// - error: Provider errors, network errors, or context cancellation.
	//
	// The LLM may respond with:
	// - Text only: Direct answer to the user's question.
	// - Tool calls only: Request to invoke external tools.
	// - Both: Text explanation plus tool invocations.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message represents a single message in an agenticTask node's
// conversation with its model provider.
//
// Messages are the fundamental unit of communication with LLM providers.
// They follow the common chat format used by OpenAI, Anthropic, Google, and other providers.
//
// Typical conversation structure:
// - System message (optional): the node's "systemPrompt" property.
// - User messages: workflow-supplied input or questions.
// - Assistant messages: prior provider responses.
//
// Example:
//
// conversation := []Message{.
//
//		    {Role: RoleSystem, Content: "You triage incoming support tickets."},
//		    {Role: RoleUser, Content: "Ticket #482: customer cannot reset password."},
//		    {Role: RoleAssistant, Content: "Escalate to account-recovery queue."},
//	}.
type Message struct {
	// Role identifies the message sender.
	// Standard roles: "system", "user", "assistant".
	// Use the Role* constants for consistency.
	Role string

	// Content contains the message text.
	// May be empty for messages that only contain tool calls.
	Content string
}

// Standard role constants for LLM conversations.
// These align with the conventions used by major LLM providers.
const (
	// RoleSystem indicates a system message that sets context or instructions.
	// System messages typically appear first in a conversation.
	RoleSystem = "system"

	// RoleUser indicates a message from the human user.
	// User messages contain questions, requests, or input data.
	RoleUser = "user"

	// RoleAssistant indicates a response from the LLM.
	// Assistant messages contain generated text or tool calls.
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool that an agenticTask node's model provider can
// call. Its Schema shape is the same one a workflow author declares under
// the node's "toolSchemas" property (executors.runTools validates the
// tool's actual call arguments against it before invocation).
//
// Tools enable an agentic task to interact with external systems:
// - HTTP/API requests.
// - Record lookups.
// - Notification side effects.
//
// The Schema field follows JSON Schema format and describes the expected input parameters.
//
// Example:
//
// lookupTool := ToolSpec{.
//
//	Name:        "account_lookup",
//	Description: "Look up an account's current status and balance",
//
// Schema: map[string]interface{}{.
//
//	"type": "object",
//
// "properties": map[string]interface{}{.
// "accountId": map[string]interface{}{.
//
//		                "type":        "string",
//		                "description": "Account identifier",
//		            },
//		        },
//		        "required": []string{"accountId"},
//		    },
//	}.
type ToolSpec struct {
	// Name uniquely identifies the tool.
	// Must be a valid function name (alphanumeric + underscores).
	Name string

	// Description explains what the tool does.
	// The LLM uses this to decide when to call the tool.
	Description string

	// Schema defines the tool's input parameters using JSON Schema format.
	// Optional for tools with no parameters.
	Schema map[string]interface{}
}

// ChatOut represents the output from an LLM chat completion.
//
// LLMs can respond with:
// - Text only: A direct answer.
// - Tool calls only: Request to invoke external tools.
// - Both: Text explanation plus tool invocations.
//
// Example text response:
//
// out := ChatOut{.
//
//		    Text: "Escalate to account-recovery queue.",
//	}.
//
// Example tool call response:
//
// out := ChatOut{.
// ToolCalls: []ToolCall{.
// {.
//
//		            Name:  "account_lookup",
//		            Input: map[string]interface{}{"accountId": "acct-482"},
//		        },
//		    },
//	}.
type ChatOut struct {
	// Text contains the LLM's generated response.
	// May be empty if the LLM only wants to call tools.
	Text string

	// ToolCalls contains tools the LLM wants to invoke.
	// Empty if the LLM provided a direct text response.
	ToolCalls []ToolCall
}

// ToolCall represents a request from the LLM to invoke a specific tool.
//
// After the LLM requests tool calls, the application should:
// 1. Execute each tool with the provided Input.
// 2. Collect the results.
// 3. Send results back to the LLM in a new message.
//
// Example:
//
// call := ToolCall{.
//
//		    Name:  "account_lookup",
//		    Input: map[string]interface{}{"accountId": "acct-482"},
//	}.
type ToolCall struct {
	// Name identifies which tool to call.
	// Must match a ToolSpec.Name from the available tools.
	Name string

	// Input contains the parameters for the tool call.
	// Structure matches the ToolSpec.Schema for this tool.
	// May be nil for tools that take no parameters.
	Input map[string]interface{}
}

// Provider selection in this engine.
//
// executors/agentic.go never selects a ChatModel/StreamingChatModel
// itself — an agenticTask node names its provider via the "provider"
// property, and executeAgenticTask looks it up in Deps.Streaming, a
// map[string]model.StreamingChatModel populated at startup from
// configuration (one entry per configured Anthropic/OpenAI/Gemini/Bedrock
// adapter). A node whose "provider" has no matching entry fails fast with
// a descriptive error rather than silently falling back to a default
// model, since retrying an agentic task against the wrong provider would
// burn tokens and confuse the confidence-gated retry loop in
// executeAgenticTask.
//
// Swapping providers, or adding a new one, means adding a ChatModel/
// StreamingChatModel implementation and registering it in Deps.Streaming
// under the name a workflow definition's "provider" property will use —
// nothing else in the engine needs to change.
