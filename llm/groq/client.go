// Package groq implements the llm.Client interface for Groq's inference
// API. Groq speaks the OpenAI-compatible chat-completion wire format, so
// the adapter binds the OpenAI adapter to Groq's endpoint.
package groq

import (
	"fmt"

	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/llm/openai"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// Client implements llm.Client against Groq hardware.
type Client struct {
	*openai.Client
}

// New creates a bound Groq client. baseURL overrides the default endpoint
// when non-empty.
func New(apiKey, baseURL, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	inner, err := openai.New(apiKey, baseURL, model, "")
	if err != nil {
		return nil, err
	}
	return &Client{Client: inner}, nil
}

var _ llm.Client = (*Client)(nil)
