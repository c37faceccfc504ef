// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines the common types, interfaces, and registry that let the
// rest of the codebase work with multiple LLM providers (OpenAI, Anthropic,
// Google, Groq, Ollama) without coupling to any specific vendor SDK.
//
// # Core Concepts
//
//  1. Messages: the Message type represents a conversation message with a role
//     (system, user, assistant, tool) and content blocks (text, tool use, tool
//     results). Ordering is chronological and never rearranged here.
//
//  2. Client Interface: the Client interface provides Synchronous() for
//     non-streaming calls, Stream() for streaming calls, ListModels() for live
//     model enumeration, and ValidateCredential() for credential probing.
//     Adapters that cannot stream return ErrStreamingUnsupported, which callers
//     treat as a capability flag rather than a failure.
//
//  3. Registry: the static provider table drives model validation and
//     discovery metadata; the Registry constructs bound adapters from
//     explicitly wired builders. Validation always happens before any network
//     call.
//
//  4. Errors: the Error type provides provider-neutral error handling with
//     credential, rate-limit, and retryable classification. Vendor SDK errors
//     never cross this package boundary unwrapped.
//
// To add a new provider: implement Client in its own subpackage, translate
// between vendor types and this package's types, convert vendor errors to
// llm.Error kinds, add a ProviderInfo row, and wire the builder at startup.
package llm
