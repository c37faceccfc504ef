package llm

import (
	"encoding/json"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// Message represents a single message in a conversation.
// Messages are provider-neutral and ordering is insertion-order significant;
// nothing in this module reorders a conversation.
type Message struct {
	Role     MessageRole       `json:"role"`
	Content  []ContentBlock    `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"` // Opaque caller metadata, passed through untouched
}

// ContentBlock represents a single content block within a message.
// It can be text, a tool use, or a tool result.
type ContentBlock struct {
	Type       ContentBlockType `json:"type"`
	Text       string           `json:"text,omitempty"`        // For text blocks
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`    // For tool use blocks
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"` // For tool result blocks
}

// ContentBlockType represents the type of content block.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// ToolUseBlock represents a tool invocation request from the assistant.
type ToolUseBlock struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"` // JSON-serializable input parameters
}

// ToolResultBlock represents the result of a tool invocation.
type ToolResultBlock struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"` // JSON-serialized result
	IsError bool   `json:"is_error,omitempty"`
}

// ToolSpec represents a tool definition that can be provided to an LLM.
type ToolSpec struct {
	Name        string
	Description string
	Schema      ToolSchema
}

// ToolSchema represents the JSON schema for a tool's input parameters.
type ToolSchema struct {
	Type       string
	Properties map[string]interface{}
	Required   []string
}

// Request represents a complete LLM API request.
type Request struct {
	Model       string
	Messages    []Message
	System      string
	Tools       []ToolSpec
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
}

// Response represents a complete LLM API response.
// Exactly one of Text()/ToolCall() is meaningful per response: a reply
// that requests a tool invocation carries no usable final text.
type Response struct {
	Content    []ContentBlock
	Usage      *Usage // nil when the vendor does not report usage
	StopReason string
}

// Text returns the concatenated text content of the response, or "" when
// the response is a tool-call request.
func (r *Response) Text() string {
	if r.ToolCall() != nil {
		return ""
	}
	var out string
	for _, block := range r.Content {
		if block.Type == ContentBlockTypeText {
			out += block.Text
		}
	}
	return out
}

// ToolCall returns the first tool-use block in the response, or nil when
// the response is a terminal answer.
func (r *Response) ToolCall() *ToolUseBlock {
	for _, block := range r.Content {
		if block.Type == ContentBlockTypeToolUse && block.ToolUse != nil {
			return block.ToolUse
		}
	}
	return nil
}

// Usage represents token usage information from an LLM response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// StreamDelta represents a single delta in a streaming response.
type StreamDelta struct {
	Type StreamDeltaType
	Text string // For text deltas
}

// StreamDeltaType represents the type of streaming delta.
type StreamDeltaType string

const (
	StreamDeltaTypeText StreamDeltaType = "text"
)

// StreamEvent represents a complete streaming event.
type StreamEvent struct {
	Type  StreamEventType
	Delta *StreamDelta
	Usage *Usage
	Done  bool
}

// StreamEventType represents the type of streaming event.
type StreamEventType string

const (
	StreamEventTypeStart        StreamEventType = "start"
	StreamEventTypeContentDelta StreamEventType = "content_delta"
	StreamEventTypeStop         StreamEventType = "stop"
)

// NewTextMessage creates a new message with a single text content block.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{
				Type: ContentBlockTypeText,
				Text: text,
			},
		},
	}
}

// NewToolResultMessage creates a tool-role message carrying the serialized
// result of a tool invocation.
func NewToolResultMessage(id, name, content string, isError bool) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentBlock{
			{
				Type: ContentBlockTypeToolResult,
				ToolResult: &ToolResultBlock{
					ID:      id,
					Name:    name,
					Content: content,
					IsError: isError,
				},
			},
		},
	}
}

// ToJSON marshals a message to JSON for debugging/logging purposes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
