package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/parley-ai/parley/llm"
	openai "github.com/sashabaranov/go-openai"
)

// The OpenAI API does not expose retry-after headers through the SDK
// error type, so rate limits fall back to a fixed delay.
const defaultRetryAfter = 60 * time.Second

// Client implements the llm.Client interface for OpenAI's API.
type Client struct {
	client *openai.Client
	model  string // Default model to use if not specified in request
}

// New creates a bound OpenAI client. apiKey is required; baseURL and
// organization are optional endpoint overrides.
func New(apiKey, baseURL, model, organization string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq, err := c.buildChatRequest(req, false)
	if err != nil {
		return nil, err
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, *chatReq)
	if err != nil {
		return nil, convertError(err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, llm.NewProviderError("no choices in response", nil)
	}

	choice := chatResp.Choices[0]
	content := make([]llm.ContentBlock, 0)

	// Native tool calls take precedence over any textual content.
	for _, toolCall := range choice.Message.ToolCalls {
		block, err := fromToolCall(toolCall)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tool call: %w", err)
		}
		content = append(content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: block,
		})
	}

	if len(content) == 0 && choice.Message.Content != "" {
		if toolUse := sniffToolCall(choice.Message.Content); toolUse != nil {
			content = append(content, llm.ContentBlock{
				Type:    llm.ContentBlockTypeToolUse,
				ToolUse: toolUse,
			})
		} else {
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeText,
				Text: choice.Message.Content,
			})
		}
	}

	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			InputTokens:  int64(chatResp.Usage.PromptTokens),
			OutputTokens: int64(chatResp.Usage.CompletionTokens),
		},
		StopReason: stopReason(choice.FinishReason),
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	chatReq, err := c.buildChatRequest(req, true)
	if err != nil {
		return nil, err
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, *chatReq)
	if err != nil {
		return nil, convertError(err)
	}
	return newChatStream(stream), nil
}

// ListModels implements llm.Client.ListModels.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, convertError(err)
	}
	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

// ValidateCredential implements llm.Client.ValidateCredential by listing
// models, the cheapest authenticated endpoint.
func (c *Client) ValidateCredential(ctx context.Context) bool {
	_, err := c.client.ListModels(ctx)
	return err == nil
}

// buildChatRequest flattens a provider-neutral request into the OpenAI
// wire shape. OpenAI takes the system instruction inline as a leading
// system-role message.
func (c *Client) buildChatRequest(req *llm.Request, stream bool) (*openai.ChatCompletionRequest, error) {
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

	msgs, err := toChatMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if req.System != "" {
		msgs = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		}}, msgs...)
	}

	chatReq := &openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   stream,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toChatTools(req.Tools)
		chatReq.ToolChoice = "auto"
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	return chatReq, nil
}

func stopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonLength:
		return "max_tokens"
	case openai.FinishReasonToolCalls:
		return "tool_calls"
	default:
		return "stop"
	}
}

// convertError converts OpenAI API errors to llm.Error types.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return llm.NewProviderError("OpenAI API error", err)
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llm.NewCredentialError(
			fmt.Sprintf("OpenAI rejected credential: %s", apiErr.Message), err)
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(
			fmt.Sprintf("OpenAI rate limit: %s", apiErr.Message), &retryAfter, err)
	case http.StatusBadRequest:
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     fmt.Sprintf("OpenAI invalid request: %s", apiErr.Message),
			Retryable:   false,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("OpenAI server error: %s", apiErr.Message),
			Retryable:   true,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     fmt.Sprintf("OpenAI API error: %s", apiErr.Message),
			Retryable:   false,
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	}
}

// Ensure Client implements llm.Client.
var _ llm.Client = (*Client)(nil)
