package ollama

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/parley-ai/parley/llm"
)

// toChatMessages converts provider-neutral messages to Ollama chat
// messages. Ollama carries tool results as plain tool-role text and
// tool calls inline on the assistant message.
func toChatMessages(msgs []llm.Message) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		var content string
		var toolCalls []api.ToolCall

		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				if content != "" {
					content += "\n"
				}
				content += block.Text
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse != nil {
					args := make(api.ToolCallFunctionArguments, len(block.ToolUse.Input))
					for k, v := range block.ToolUse.Input {
						args[k] = v
					}
					toolCalls = append(toolCalls, api.ToolCall{
						Function: api.ToolCallFunction{
							Name:      block.ToolUse.Name,
							Arguments: args,
						},
					})
				}
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult != nil {
					if content != "" {
						content += "\n"
					}
					content += block.ToolResult.Content
				}
			}
		}

		if content == "" && len(toolCalls) == 0 {
			continue
		}
		out = append(out, api.Message{
			Role:      string(msg.Role),
			Content:   content,
			ToolCalls: toolCalls,
		})
	}
	return out
}

// toChatTools converts tool specs to Ollama function definitions. Only
// the property type survives; Ollama's typed schema has no open
// extension point for the rest.
func toChatTools(specs []llm.ToolSpec) []api.Tool {
	out := make([]api.Tool, 0, len(specs))
	for _, spec := range specs {
		properties := make(map[string]api.ToolProperty, len(spec.Schema.Properties))
		for name, raw := range spec.Schema.Properties {
			prop := api.ToolProperty{Type: []string{"string"}}
			if propMap, ok := raw.(map[string]interface{}); ok {
				if propType, ok := propMap["type"].(string); ok {
					prop.Type = []string{propType}
				}
				if desc, ok := propMap["description"].(string); ok {
					prop.Description = desc
				}
			}
			properties[name] = prop
		}

		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       spec.Schema.Type,
					Properties: properties,
					Required:   spec.Schema.Required,
				},
			},
		})
	}
	return out
}

// fromToolCall converts a native Ollama tool call to the neutral shape.
// Ollama assigns no call IDs, so one is generated.
func fromToolCall(toolCall api.ToolCall) *llm.ToolUseBlock {
	input := make(map[string]interface{}, len(toolCall.Function.Arguments))
	for k, v := range toolCall.Function.Arguments {
		input[k] = v
	}
	return &llm.ToolUseBlock{
		ID:    uuid.NewString(),
		Name:  toolCall.Function.Name,
		Input: input,
	}
}

// sniffToolCall attempts to interpret a textual reply as a tool-call
// request: the text must be syntactically a JSON object containing a
// "tool_call" key with a tool name. Anything else is a terminal answer.
//
// Local models miss native tool-call formatting more often than hosted
// ones, so this fallback earns its keep here.
func sniffToolCall(text string) *llm.ToolUseBlock {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.Contains(trimmed, "tool_call") {
		return nil
	}

	var payload struct {
		ToolCall *struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		} `json:"tool_call"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil
	}
	if payload.ToolCall == nil || payload.ToolCall.Name == "" {
		return nil
	}

	input := payload.ToolCall.Arguments
	if input == nil {
		input = make(map[string]interface{})
	}
	return &llm.ToolUseBlock{
		ID:    uuid.NewString(),
		Name:  payload.ToolCall.Name,
		Input: input,
	}
}
