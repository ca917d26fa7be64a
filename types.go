package deepagent

import "encoding/json"

// --- Tool protocol types ---

// ToolCall is a structured request dispatched to a callable capability,
// typically issued by an LLM's decision step.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// ToolDefinition describes a tool to the LLM.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolResult is the outcome of a tool execution.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// --- Engine message shapes ---

// ToolMessage is the message-shaped value an engine's tool-execution step
// produces for a single tool call. Content is mutable so decorators can
// rewrite it before the engine folds it back into graph state.
type ToolMessage struct {
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status,omitempty"` // "success" or "error"
}

// State is the graph-state fragment exchanged with an engine's nodes:
// pending tool calls on the way in, produced messages on the way out.
type State struct {
	Messages  []*ToolMessage `json:"messages,omitempty"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
}

// Usage tracks token consumption reported by an LLM provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// --- ToolMessage constructors ---

// NewToolMessage builds a success-status tool message.
func NewToolMessage(callID, name, content string) *ToolMessage {
	return &ToolMessage{Content: content, ToolCallID: callID, Name: name, Status: "success"}
}

// NewToolErrorMessage builds an error-status tool message.
func NewToolErrorMessage(callID, name, content string) *ToolMessage {
	return &ToolMessage{Content: content, ToolCallID: callID, Name: name, Status: "error"}
}
