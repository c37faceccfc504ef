package llm

import (
	"fmt"
	"sync"

	"github.com/samber/lo"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderGroq      = "groq"
	ProviderOllama    = "ollama"
)

// ProviderInfo is static discovery metadata for a provider. It is
// independent of any live adapter and safe to serve without credentials.
type ProviderInfo struct {
	ID                 string
	Name               string
	Description        string
	Models             []string
	DefaultModel       string
	RequiresCredential bool
	SupportsStreaming  bool
}

// providerInfos declares every supported provider and its model set.
// ValidateModel and default-model substitution are driven by this table,
// not by live API calls.
var providerInfos = []ProviderInfo{
	{
		ID:          ProviderOpenAI,
		Name:        "OpenAI",
		Description: "GPT models from OpenAI including GPT-4 and GPT-3.5",
		Models: []string{
			"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo", "gpt-3.5-turbo-16k",
		},
		DefaultModel:       "gpt-3.5-turbo",
		RequiresCredential: true,
		SupportsStreaming:  true,
	},
	{
		ID:          ProviderAnthropic,
		Name:        "Anthropic",
		Description: "Claude models from Anthropic",
		Models: []string{
			"claude-3-opus-20240229",
			"claude-3-sonnet-20240229",
			"claude-3-haiku-20240307",
		},
		DefaultModel:       "claude-3-sonnet-20240229",
		RequiresCredential: true,
		SupportsStreaming:  false,
	},
	{
		ID:          ProviderGoogle,
		Name:        "Google",
		Description: "Gemini models from Google",
		Models: []string{
			"gemini-2.5-pro",
			"gemini-2.5-flash",
			"gemini-2.5-flash-lite-preview-06-17",
			"gemini-2.0-flash",
			"gemini-2.0-flash-lite",
			"gemini-1.5-pro",
			"gemini-1.5-flash",
			"gemini-1.5-flash-8b",
		},
		DefaultModel:       "gemini-2.5-pro",
		RequiresCredential: true,
		SupportsStreaming:  true,
	},
	{
		ID:          ProviderGroq,
		Name:        "Groq",
		Description: "Fast inference models on Groq hardware",
		Models: []string{
			"mixtral-8x7b-32768", "llama2-70b-4096", "gemma-7b-it",
		},
		DefaultModel:       "mixtral-8x7b-32768",
		RequiresCredential: true,
		SupportsStreaming:  true,
	},
	{
		ID:          ProviderOllama,
		Name:        "Ollama",
		Description: "Locally hosted models served by an Ollama daemon",
		Models: []string{
			"llama3.2:3b", "llama3.1:8b", "mistral:7b", "gpt-oss:20b",
		},
		DefaultModel:       "llama3.2:3b",
		RequiresCredential: false,
		SupportsStreaming:  true,
	},
}

// DescribeProviders returns static discovery metadata for every supported
// provider, in declaration order.
func DescribeProviders() []ProviderInfo {
	out := make([]ProviderInfo, len(providerInfos))
	copy(out, providerInfos)
	return out
}

// ProviderByID returns the static metadata for a provider.
func ProviderByID(providerID string) (ProviderInfo, bool) {
	return lo.Find(providerInfos, func(info ProviderInfo) bool {
		return info.ID == providerID
	})
}

// ValidateModel reports whether providerID is known and modelID is a
// member of its declared model list. Pure function, no I/O.
func ValidateModel(providerID, modelID string) bool {
	info, ok := ProviderByID(providerID)
	if !ok {
		return false
	}
	return lo.Contains(info.Models, modelID)
}

// DefaultModel returns the declared default model for a provider.
func DefaultModel(providerID string) (string, bool) {
	info, ok := ProviderByID(providerID)
	if !ok {
		return "", false
	}
	return info.DefaultModel, true
}

// ClientOptions carries everything an adapter constructor needs to bind a
// client: the credential plus optional endpoint overrides.
type ClientOptions struct {
	APIKey       string
	Model        string // Validated default-or-requested model
	BaseURL      string // OpenAI-compatible endpoint override
	Host         string // Ollama host
	Organization string // OpenAI organization
}

// ClientBuilder constructs a bound adapter for one provider.
type ClientBuilder func(opts ClientOptions) (Client, error)

// Registry maps provider identifiers to adapter constructors and their
// endpoint options. Builders are wired explicitly at startup; there are
// no ambient global registrations.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]ClientBuilder
	options  map[string]ClientOptions
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]ClientBuilder),
		options:  make(map[string]ClientOptions),
	}
}

// RegisterProvider wires a builder for a provider id. Registering an id
// the static table does not declare is a programming error.
func (r *Registry) RegisterProvider(providerID string, builder ClientBuilder) error {
	if _, ok := ProviderByID(providerID); !ok {
		return &UnsupportedProviderError{Provider: providerID}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[providerID] = builder
	return nil
}

// SetOptions records endpoint options (host, base URL, organization) for a
// provider. The credential is supplied per call to ResolveClient.
func (r *Registry) SetOptions(providerID string, opts ClientOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[providerID] = opts
}

// ResolveClient validates the provider/model pair and constructs a bound
// adapter. An empty modelID substitutes the provider's declared default.
// Construction is cheap and credentials may differ per call, so nothing
// is cached. Validation happens before any network activity.
func (r *Registry) ResolveClient(providerID, credential, modelID string) (Client, string, error) {
	info, ok := ProviderByID(providerID)
	if !ok {
		return nil, "", &UnsupportedProviderError{Provider: providerID}
	}
	if modelID == "" {
		modelID = info.DefaultModel
	}
	if !ValidateModel(providerID, modelID) {
		return nil, "", &InvalidModelError{Provider: providerID, Model: modelID}
	}

	r.mu.RLock()
	builder, ok := r.builders[providerID]
	opts := r.options[providerID]
	r.mu.RUnlock()
	if !ok {
		return nil, "", &UnsupportedProviderError{Provider: providerID}
	}

	// A per-call credential wins over the configured one.
	if credential != "" {
		opts.APIKey = credential
	}
	if info.RequiresCredential && opts.APIKey == "" {
		return nil, "", NewCredentialError(fmt.Sprintf("no credential configured for provider %q", providerID), nil)
	}
	opts.Model = modelID
	client, err := builder(opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to construct %s client: %w", providerID, err)
	}
	return client, modelID, nil
}
