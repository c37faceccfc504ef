package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/parley-ai/parley/llm"
)

const defaultRetryAfter = 60 * time.Second

// credentialProbeTokens keeps ValidateCredential's live request as small
// as the API allows.
const credentialProbeTokens = 1

// Client implements the llm.Client interface for Anthropic's API.
type Client struct {
	client *anthropic.Client
	model  string // Default model to use if not specified in request
}

// New creates a bound Anthropic client.
func New(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client: &client,
		model:  model,
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
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

	// Anthropic takes the system instruction out-of-band, not as a
	// message. The first system-role message fills in when the request
	// carries none explicitly.
	system, rest := extractSystem(req.System, req.Messages)

	msgs, err := toMessageParams(rest)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: req.MaxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolUnionParams(req.Tools)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, convertError(err)
	}

	content := make([]llm.ContentBlock, 0, len(message.Content))
	for _, blockUnion := range message.Content {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			if toolUse := sniffToolCall(block.Text); toolUse != nil {
				content = append(content, llm.ContentBlock{
					Type:    llm.ContentBlockTypeToolUse,
					ToolUse: toolUse,
				})
				continue
			}
			content = append(content, llm.ContentBlock{
				Type: llm.ContentBlockTypeText,
				Text: block.Text,
			})
		case anthropic.ToolUseBlock:
			content = append(content, llm.ContentBlock{
				Type:    llm.ContentBlockTypeToolUse,
				ToolUse: fromToolUseBlock(block),
			})
		}
	}

	return &llm.Response{
		Content: content,
		Usage: &llm.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
		StopReason: string(message.StopReason),
	}, nil
}

// Stream implements llm.Client.Stream. The Anthropic adapter does not
// stream; callers fall back to Synchronous.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	return nil, llm.ErrStreamingUnsupported
}

// ListModels implements llm.Client.ListModels.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, convertError(err)
	}
	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// ValidateCredential implements llm.Client.ValidateCredential with a
// one-token message request.
func (c *Client) ValidateCredential(ctx context.Context) bool {
	model := c.model
	if model == "" {
		model = "claude-3-haiku-20240307"
	}
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: credentialProbeTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("test")),
		},
	})
	return err == nil
}

// extractSystem returns the effective system instruction and the message
// list with system-role messages removed.
func extractSystem(system string, msgs []llm.Message) (string, []llm.Message) {
	rest := make([]llm.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == llm.RoleSystem {
			if system == "" {
				for _, block := range msg.Content {
					if block.Type == llm.ContentBlockTypeText {
						system += block.Text
					}
				}
			}
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}

// convertError converts Anthropic API errors to llm.Error types.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return llm.NewProviderError("Anthropic API error", err)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llm.NewCredentialError("Anthropic rejected credential", err)
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError("Anthropic rate limit", &retryAfter, err)
	case http.StatusBadRequest:
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     "Anthropic invalid request",
			Retryable:   false,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, 529:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     "Anthropic server error",
			Retryable:   true,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     "Anthropic API error",
			Retryable:   false,
			StatusCode:  apiErr.StatusCode,
			ProviderErr: err,
		}
	}
}

var _ llm.Client = (*Client)(nil)
