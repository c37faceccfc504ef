package google

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/parley-ai/parley/llm"
	"google.golang.org/genai"
)

// toContents converts provider-neutral messages into Gemini contents and
// pulls the system instruction out of the message list. Assistant turns
// map to the "model" role; tool results travel as function-response parts.
func toContents(system string, msgs []llm.Message) (string, []*genai.Content) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			if system == "" {
				system = textOf(msg)
			}
			continue
		}

		role := genai.Role(genai.RoleUser)
		if msg.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case llm.ContentBlockTypeText:
				parts = append(parts, genai.NewPartFromText(block.Text))
			case llm.ContentBlockTypeToolUse:
				if block.ToolUse != nil {
					parts = append(parts, genai.NewPartFromFunctionCall(block.ToolUse.Name, block.ToolUse.Input))
				}
			case llm.ContentBlockTypeToolResult:
				if block.ToolResult != nil {
					var response map[string]interface{}
					if err := json.Unmarshal([]byte(block.ToolResult.Content), &response); err != nil {
						response = map[string]interface{}{"result": block.ToolResult.Content}
					}
					parts = append(parts, genai.NewPartFromFunctionResponse(block.ToolResult.Name, response))
				}
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return system, contents
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

// toFunctionDeclarations converts tool specs to Gemini function
// declarations. Only the object/property/required subset of JSON schema
// survives the translation; Gemini's Schema type has no open extension
// point for the rest.
func toFunctionDeclarations(specs []llm.ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		properties := make(map[string]*genai.Schema, len(spec.Schema.Properties))
		for name, raw := range spec.Schema.Properties {
			properties[name] = toSchema(raw)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   spec.Schema.Required,
			},
		})
	}
	return out
}

func toSchema(raw interface{}) *genai.Schema {
	prop, ok := raw.(map[string]interface{})
	if !ok {
		return &genai.Schema{Type: genai.TypeString}
	}
	schema := &genai.Schema{Type: schemaType(prop["type"])}
	if desc, ok := prop["description"].(string); ok {
		schema.Description = desc
	}
	if items, ok := prop["items"]; ok && schema.Type == genai.TypeArray {
		schema.Items = toSchema(items)
	}
	return schema
}

func schemaType(raw interface{}) genai.Type {
	t, _ := raw.(string)
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// fromFunctionCall converts a native Gemini function call to the neutral
// shape. Gemini does not always assign call IDs.
func fromFunctionCall(call *genai.FunctionCall) *llm.ToolUseBlock {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}
	input := call.Args
	if input == nil {
		input = make(map[string]interface{})
	}
	return &llm.ToolUseBlock{
		ID:    id,
		Name:  call.Name,
		Input: input,
	}
}

// sniffToolCall attempts to interpret a textual reply as a tool-call
// request: the text must be syntactically a JSON object containing a
// "tool_call" key with a tool name. Anything else is a terminal answer.
//
// The heuristic can misclassify a legitimate JSON-shaped answer; it runs
// only when the API returned no native function call.
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
