package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/parley-ai/parley/llm"
)

// Client implements the llm.Client interface for a local Ollama daemon.
type Client struct {
	client *api.Client
	model  string // Default model to use if not specified in request
}

// New creates a bound Ollama client. An empty host falls back to the
// OLLAMA_HOST environment variable or http://localhost:11434.
func New(host, model string) (*Client, error) {
	var client *api.Client

	if host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host: %w", err)
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// parseHost parses a host string into a URL, defaulting to http.
func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Synchronous implements llm.Client.Synchronous.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq, err := c.buildChatRequest(req, false)
	if err != nil {
		return nil, err
	}

	var chatResp api.ChatResponse
	err = c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, convertError(err)
	}

	content := make([]llm.ContentBlock, 0)
	for _, toolCall := range chatResp.Message.ToolCalls {
		content = append(content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: fromToolCall(toolCall),
		})
	}
	if len(content) == 0 && chatResp.Message.Content != "" {
		if toolUse := sniffToolCall(chatResp.Message.Content); toolUse != nil {
			content = append(content, llm.ContentBlock{
				Type:    llm.ContentBlockTypeToolUse,
				ToolUse: toolUse,
			})
		} else {
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeText,
				Text: chatResp.Message.Content,
			})
		}
	}

	usage := &llm.Usage{}
	if chatResp.PromptEvalCount > 0 {
		usage.InputTokens = int64(chatResp.PromptEvalCount)
	}
	if chatResp.EvalCount > 0 {
		usage.OutputTokens = int64(chatResp.EvalCount)
	}

	stopReason := "end_turn"
	if chatResp.DoneReason != "" {
		stopReason = chatResp.DoneReason
	}

	return &llm.Response{
		Content:    content,
		Usage:      usage,
		StopReason: stopReason,
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	chatReq, err := c.buildChatRequest(req, true)
	if err != nil {
		return nil, err
	}
	return newChatStream(ctx, c.client, chatReq), nil
}

// ListModels implements llm.Client.ListModels with the daemon's local
// model inventory.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// ValidateCredential implements llm.Client.ValidateCredential. Ollama
// has no credentials; reachability of the daemon stands in.
func (c *Client) ValidateCredential(ctx context.Context) bool {
	_, err := c.client.List(ctx)
	return err == nil
}

// buildChatRequest flattens a provider-neutral request into the Ollama
// chat shape. The system instruction is prepended as a system-role
// message; sampling knobs travel in the Options map.
func (c *Client) buildChatRequest(req *llm.Request, stream bool) (*api.ChatRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	msgs := toChatMessages(req.Messages)
	if req.System != "" {
		msgs = append([]api.Message{{Role: "system", Content: req.System}}, msgs...)
	}

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
		Options:  make(map[string]interface{}),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toChatTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}
	return chatReq, nil
}

// convertError converts Ollama API errors to llm.Error types. The
// daemon is local, so most failures are connectivity, not credentials.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr api.StatusError
	if !errors.As(err, &statusErr) {
		return &llm.Error{
			Type:        llm.ErrorTypeNetwork,
			Message:     "Ollama request failed",
			Retryable:   true,
			ProviderErr: err,
		}
	}

	switch {
	case statusErr.StatusCode == http.StatusNotFound:
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     "Ollama model not found",
			Retryable:   false,
			StatusCode:  statusErr.StatusCode,
			ProviderErr: err,
		}
	case statusErr.StatusCode >= 500:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     "Ollama server error",
			Retryable:   true,
			StatusCode:  statusErr.StatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     "Ollama API error",
			Retryable:   false,
			StatusCode:  statusErr.StatusCode,
			ProviderErr: err,
		}
	}
}

var _ llm.Client = (*Client)(nil)
