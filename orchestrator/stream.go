package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/llm"
)

// generateStreaming runs one provider call in streaming mode and
// returns the assembled response. Fragments reach fn as they arrive,
// except that a reply which may be a tool call is held back until the
// stream ends; the consumer never sees partial tool-call JSON. The
// delivered fragments and the returned text come from the same
// generation.
func (o *Orchestrator) generateStreaming(ctx context.Context, client llm.Client, req *llm.Request, fn StreamFunc) (*llm.Response, error) {
	stream, err := client.Stream(ctx, req)
	if errors.Is(err, llm.ErrStreamingUnsupported) {
		return o.generateSyncFragment(ctx, client, req, fn)
	}
	if err != nil {
		o.logger.Warn().Err(err).Msg("Stream setup failed; falling back to synchronous call")
		return o.generateSyncFragment(ctx, client, req, fn)
	}
	defer stream.Close()

	var acc strings.Builder
	var usage *llm.Usage
	var decided, delivering, delivered bool

	for stream.Next() {
		event := stream.Event()
		if event == nil {
			continue
		}
		if event.Usage != nil {
			usage = event.Usage
		}
		if event.Delta == nil || event.Delta.Text == "" {
			continue
		}
		acc.WriteString(event.Delta.Text)

		if !decided {
			trimmed := strings.TrimSpace(acc.String())
			if trimmed == "" {
				continue
			}
			decided = true
			// A reply opening with "{" may be a tool call; hold it
			// until the stream ends.
			delivering = !strings.HasPrefix(trimmed, "{")
			if delivering {
				if err := fn(acc.String()); err != nil {
					return nil, err
				}
				delivered = true
			}
			continue
		}
		if delivering {
			if err := fn(event.Delta.Text); err != nil {
				return nil, err
			}
			delivered = true
		}
	}
	if err := stream.Err(); err != nil {
		if delivered {
			return nil, err
		}
		o.logger.Warn().Err(err).Msg("Stream failed before any fragment was delivered; falling back to synchronous call")
		return o.generateSyncFragment(ctx, client, req, fn)
	}

	text := acc.String()
	if strings.TrimSpace(text) == "" {
		// Streams carry text only. Vendors that answer with a native
		// structured tool call produce an empty stream; re-issue the
		// call synchronously to get the structured response.
		return o.generateSyncFragment(ctx, client, req, fn)
	}

	if !delivering {
		if toolUse := sniffToolCall(text); toolUse != nil {
			return &llm.Response{
				Content: []llm.ContentBlock{{
					Type:    llm.ContentBlockTypeToolUse,
					ToolUse: toolUse,
				}},
				Usage:      usage,
				StopReason: "tool_use",
			}, nil
		}
		// A JSON-shaped terminal answer; deliver it whole now that it
		// is known not to be a tool call.
		if err := fn(text); err != nil {
			return nil, err
		}
	}

	return &llm.Response{
		Content: []llm.ContentBlock{{
			Type: llm.ContentBlockTypeText,
			Text: text,
		}},
		Usage:      usage,
		StopReason: "end_turn",
	}, nil
}

// generateSyncFragment is the non-streaming path of a streaming turn:
// one synchronous generation whose terminal text is delivered as a
// single fragment.
func (o *Orchestrator) generateSyncFragment(ctx context.Context, client llm.Client, req *llm.Request, fn StreamFunc) (*llm.Response, error) {
	resp, err := generateWithRetry(ctx, client, req)
	if err != nil {
		return nil, err
	}
	if resp.ToolCall() == nil {
		if text := resp.Text(); text != "" {
			if err := fn(text); err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

// sniffToolCall interprets an assembled streamed reply as a tool-call
// request: the text must be syntactically a JSON object containing a
// "tool_call" key with a tool name. Anything else is a terminal answer.
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
