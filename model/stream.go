package model

import "context"

// StreamDelta is one incremental chunk of a streaming chat response.
//
// Providers emit a sequence of StreamDelta values ending with Done=true;
// the concatenation of Text fields in order reproduces the full response
// text that a non-streaming Chat call would have returned.
type StreamDelta struct {
	// Text is the incremental text produced since the previous delta.
	Text string

	// ToolCalls carries any tool invocations the model decided to make.
	// Providers that only learn about tool calls at stream end attach
	// them to the final delta (Done=true).
	ToolCalls []ToolCall

	// Done marks the last delta of the stream.
	Done bool
}

// StreamingChatModel is implemented by providers capable of token-by-token
// delivery. The agentic task executor (C3.1) feeds each delta's Text into
// the sentence segmenter rather than waiting for the full response.
type StreamingChatModel interface {
	ChatModel

	// StreamChat sends messages and invokes onDelta for each incremental
	// chunk as it arrives. It returns once the stream is exhausted, the
	// model finishes, or ctx is cancelled — whichever happens first.
	StreamChat(ctx context.Context, messages []Message, tools []ToolSpec, onDelta func(StreamDelta) error) (ChatOut, error)
}

// ChatFunc adapts a plain function to ChatModel, mirroring the teacher's
// NodeFunc adapter pattern.
type ChatFunc func(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)

// Chat implements ChatModel.
func (f ChatFunc) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	return f(ctx, messages, tools)
}
