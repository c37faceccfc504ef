package anthropic

import (
	"encoding/json"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/parley-ai/parley/llm"
)

// toMessageParams converts provider-neutral messages to Anthropic message
// params. Tool-role messages become user messages carrying tool_result
// blocks, matching the Anthropic conversation convention.
func toMessageParams(msgs []llm.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				blocks = append(blocks, anthropic.NewTextBlock(block.Text))
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse != nil {
					blocks = append(blocks, anthropic.NewToolUseBlock(
						block.ToolUse.ID,
						block.ToolUse.Input,
						block.ToolUse.Name,
					))
				}
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult != nil {
					blocks = append(blocks, anthropic.NewToolResultBlock(
						block.ToolResult.ID,
						block.ToolResult.Content,
						block.ToolResult.IsError,
					))
				}
			}
		}
		if len(blocks) == 0 {
			continue
		}

		switch msg.Role {
		case llm.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			// User and tool messages both travel as user-role params.
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

// toToolUnionParams converts tool specs to Anthropic tool params.
func toToolUnionParams(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       "object",
					Properties: spec.Schema.Properties,
					Required:   spec.Schema.Required,
				},
			},
		})
	}
	return out
}

// fromToolUseBlock converts a native tool_use block to the neutral shape.
func fromToolUseBlock(block anthropic.ToolUseBlock) *llm.ToolUseBlock {
	input := make(map[string]interface{})
	if block.Input != nil {
		if raw, err := json.Marshal(block.Input); err == nil {
			if err := json.Unmarshal(raw, &input); err != nil {
				input = make(map[string]interface{})
			}
		}
	}
	return &llm.ToolUseBlock{
		ID:    block.ID,
		Name:  block.Name,
		Input: input,
	}
}

// sniffToolCall attempts to interpret a textual reply as a tool-call
// request: the text must be syntactically a JSON object containing a
// "tool_call" key with a tool name. Anything else is a terminal answer.
//
// The heuristic can misclassify a legitimate JSON-shaped answer; it runs
// only when the API returned no native tool_use block.
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
