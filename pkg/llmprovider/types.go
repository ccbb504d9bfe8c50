// Package llmprovider wraps the model-provider client used for both the
// orchestrator's streaming chat loop and the judges' single-shot forced tool
// completions.
package llmprovider

import (
	"context"
	"encoding/json"
)

// Provider is the model-provider capability the orchestrator and judges
// depend on. *Client implements it against a live OpenAI-compatible backend;
// tests substitute a fake to avoid network calls.
type Provider interface {
	StreamChat(ctx context.Context, messages []Message, tools []ToolDef) (<-chan StreamEvent, error)
	ForceToolCall(ctx context.Context, messages []Message, tool ToolDef) (json.RawMessage, error)
}

// Role is a chat message's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested invocation of a named tool with raw JSON
// arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object, possibly still accumulating mid-stream
}

// Message is one entry in a chat conversation sent to the provider.
type Message struct {
	Role Role

	Content string

	// ToolCalls is set on an assistant message that requested tool calls.
	ToolCalls []ToolCall

	// ToolCallID/Name identify which prior tool call a Role==RoleTool message
	// is responding to.
	ToolCallID string
	Name       string
}

// ToolDef declares one callable tool to the provider.
type ToolDef struct {
	Name        string
	Description string
	// Schema is a JSON Schema value (e.g. *jsonschema.Schema from SchemaFor)
	// describing the tool's input object.
	Schema any
}

// EventType discriminates a StreamEvent.
type EventType string

const (
	EventText     EventType = "text_delta"
	EventToolCall EventType = "tool_use_start"
	EventStop     EventType = "stop"
	EventError    EventType = "error"
)

// StreamEvent is one unit of a streaming chat response.
type StreamEvent struct {
	Type EventType

	TextDelta string
	ToolCall  ToolCall
	Err       error
}
