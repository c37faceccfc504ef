package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parley-ai/parley/llm"
	"google.golang.org/genai"
)

// Client implements the llm.Client interface for Google's Gemini API.
type Client struct {
	client *genai.Client
	model  string // Default model to use if not specified in request
}

// New creates a bound Gemini client.
func New(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *Client) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	model, contents, cfg, err := c.buildGenerateCall(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, convertError(err)
	}

	content := make([]llm.ContentBlock, 0)
	for _, call := range resp.FunctionCalls() {
		content = append(content, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: fromFunctionCall(call),
		})
	}
	if len(content) == 0 {
		if text := resp.Text(); text != "" {
			if toolUse := sniffToolCall(text); toolUse != nil {
				content = append(content, llm.ContentBlock{
					Type:    llm.ContentBlockTypeToolUse,
					ToolUse: toolUse,
				})
			} else {
				content = append(content, llm.ContentBlock{
					Type: llm.ContentBlockTypeText,
					Text: text,
				})
			}
		}
	}

	// Gemini does not always report usage; leave it nil when absent.
	var usage *llm.Usage
	if resp.UsageMetadata != nil {
		usage = &llm.Usage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	stopReason := ""
	if len(resp.Candidates) > 0 {
		stopReason = string(resp.Candidates[0].FinishReason)
	}

	return &llm.Response{
		Content:    content,
		Usage:      usage,
		StopReason: stopReason,
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *Client) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	model, contents, cfg, err := c.buildGenerateCall(req)
	if err != nil {
		return nil, err
	}
	return newGeminiStream(c.client.Models.GenerateContentStream(ctx, model, contents, cfg)), nil
}

// ListModels implements llm.Client.ListModels.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var models []string
	for model, err := range c.client.Models.All(ctx) {
		if err != nil {
			return nil, convertError(err)
		}
		models = append(models, strings.TrimPrefix(model.Name, "models/"))
	}
	return models, nil
}

// ValidateCredential implements llm.Client.ValidateCredential with a
// minimal generation request.
func (c *Client) ValidateCredential(ctx context.Context) bool {
	model := c.model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	resp, err := c.client.Models.GenerateContent(ctx, model,
		genai.Text("test"), &genai.GenerateContentConfig{})
	return err == nil && resp != nil
}

// buildGenerateCall flattens a provider-neutral request into the Gemini
// call shape. Gemini takes the system instruction out-of-band via
// GenerateContentConfig.SystemInstruction.
func (c *Client) buildGenerateCall(req *llm.Request) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	if req == nil {
		return "", nil, nil, fmt.Errorf("request is required")
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return "", nil, nil, fmt.Errorf("model is required")
	}

	system, contents := toContents(req.System, req.Messages)

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(req.Tools)}}
	}

	return model, contents, cfg, nil
}

// convertError converts Gemini API errors to llm.Error types.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return llm.NewProviderError("Google API error", err)
	}

	switch apiErr.Code {
	case 401, 403:
		return llm.NewCredentialError("Google rejected credential", err)
	case 429:
		return llm.NewRateLimitError("Google rate limit", nil, err)
	case 400:
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     "Google invalid request",
			Retryable:   false,
			StatusCode:  apiErr.Code,
			ProviderErr: err,
		}
	case 500, 502, 503:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     "Google server error",
			Retryable:   true,
			StatusCode:  apiErr.Code,
			ProviderErr: err,
		}
	default:
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     "Google API error",
			Retryable:   false,
			StatusCode:  apiErr.Code,
			ProviderErr: err,
		}
	}
}

var _ llm.Client = (*Client)(nil)
