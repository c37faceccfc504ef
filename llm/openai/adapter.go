package openai

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/parley-ai/parley/llm"
	openai "github.com/sashabaranov/go-openai"
)

// toChatMessages converts provider-neutral messages to the OpenAI wire
// shape. Tool results become tool-role messages keyed by tool_call_id;
// assistant tool uses become tool_calls entries.
func toChatMessages(msgs []llm.Message) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleTool:
			for _, block := range msg.Content {
				if block.Type != llm.ContentBlockTypeToolResult || block.ToolResult == nil {
					continue
				}
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    block.ToolResult.Content,
					ToolCallID: block.ToolResult.ID,
				})
			}
		case llm.RoleAssistant:
			converted, err := toAssistantMessage(msg)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		default:
			role := openai.ChatMessageRoleUser
			if msg.Role == llm.RoleSystem {
				role = openai.ChatMessageRoleSystem
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:    role,
				Content: textOf(msg),
			})
		}
	}
	return out, nil
}

func toAssistantMessage(msg llm.Message) (openai.ChatCompletionMessage, error) {
	converted := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: textOf(msg),
	}
	for _, block := range msg.Content {
		if block.Type != llm.ContentBlockTypeToolUse || block.ToolUse == nil {
			continue
		}
		args, err := json.Marshal(block.ToolUse.Input)
		if err != nil {
			return openai.ChatCompletionMessage{}, err
		}
		converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
			ID:   block.ToolUse.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      block.ToolUse.Name,
				Arguments: string(args),
			},
		})
	}
	return converted, nil
}

func textOf(msg llm.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == llm.ContentBlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// toChatTools converts tool specs to OpenAI function definitions.
func toChatTools(specs []llm.ToolSpec) []openai.Tool {
	out := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		params := map[string]interface{}{
			"type":       "object",
			"properties": spec.Schema.Properties,
		}
		if len(spec.Schema.Required) > 0 {
			params["required"] = spec.Schema.Required
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// fromToolCall converts a native OpenAI tool call to a tool-use block.
func fromToolCall(call openai.ToolCall) (*llm.ToolUseBlock, error) {
	input := make(map[string]interface{})
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
			return nil, err
		}
	}
	return &llm.ToolUseBlock{
		ID:    call.ID,
		Name:  call.Function.Name,
		Input: input,
	}, nil
}

// sniffToolCall attempts to interpret a textual reply as a tool-call
// request: the text must be syntactically a JSON object containing a
// "tool_call" key with a tool name. Anything else is a terminal answer.
//
// This heuristic can misclassify a legitimate answer that happens to be
// JSON with a tool_call field. It runs only as a fallback when the API
// reported no native tool calls.
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
