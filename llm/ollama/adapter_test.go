package ollama

import (
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/parley-ai/parley/llm"
)

func TestToChatMessages(t *testing.T) {
	msgs := []llm.Message{
		llm.NewTextMessage(llm.RoleUser, "hello"),
		{
			Role: llm.RoleAssistant,
			Content: []llm.ContentBlock{{
				Type: llm.ContentBlockTypeToolUse,
				ToolUse: &llm.ToolUseBlock{
					ID:    "id-1",
					Name:  "search",
					Input: map[string]interface{}{"query": "cats"},
				},
			}},
		},
		llm.NewToolResultMessage("id-1", "search", `{"result":"3 links"}`, false),
	}

	out := toChatMessages(msgs)
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[0].Role != "user" || out[0].Content != "hello" {
		t.Errorf("user message = %+v", out[0])
	}
	if len(out[1].ToolCalls) != 1 || out[1].ToolCalls[0].Function.Name != "search" {
		t.Errorf("assistant tool calls = %+v", out[1].ToolCalls)
	}
	if out[2].Role != "tool" || out[2].Content != `{"result":"3 links"}` {
		t.Errorf("tool result message = %+v", out[2])
	}
}

func TestToChatMessages_SkipsEmpty(t *testing.T) {
	out := toChatMessages([]llm.Message{{Role: llm.RoleUser}})
	if len(out) != 0 {
		t.Errorf("empty message should be dropped, got %d", len(out))
	}
}

func TestToChatTools(t *testing.T) {
	specs := []llm.ToolSpec{{
		Name:        "search",
		Description: "Search the web",
		Schema: llm.ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "Search query"},
				"limit": map[string]interface{}{"type": "integer"},
			},
			Required: []string{"query"},
		},
	}}

	out := toChatTools(specs)
	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	fn := out[0].Function
	if fn.Name != "search" || fn.Description != "Search the web" {
		t.Errorf("function = %+v", fn)
	}
	if got := fn.Parameters.Properties["query"].Type; len(got) != 1 || got[0] != "string" {
		t.Errorf("query type = %v", got)
	}
	if got := fn.Parameters.Properties["limit"].Type; len(got) != 1 || got[0] != "integer" {
		t.Errorf("limit type = %v", got)
	}
	if len(fn.Parameters.Required) != 1 || fn.Parameters.Required[0] != "query" {
		t.Errorf("required = %v", fn.Parameters.Required)
	}
}

func TestFromToolCall_GeneratesID(t *testing.T) {
	block := fromToolCall(api.ToolCall{
		Function: api.ToolCallFunction{
			Name:      "search",
			Arguments: api.ToolCallFunctionArguments{"query": "cats"},
		},
	})
	if block.ID == "" {
		t.Error("tool use block should carry a generated id")
	}
	if block.Name != "search" || block.Input["query"] != "cats" {
		t.Errorf("block = %+v", block)
	}
}

func TestParseHost(t *testing.T) {
	u, err := parseHost("localhost:11434")
	if err != nil {
		t.Fatalf("parseHost: %v", err)
	}
	if u.Scheme != "http" {
		t.Errorf("scheme = %q, want http", u.Scheme)
	}

	u, err = parseHost("https://ollama.example.com")
	if err != nil {
		t.Fatalf("parseHost: %v", err)
	}
	if u.Scheme != "https" {
		t.Errorf("scheme = %q, want https", u.Scheme)
	}
}
