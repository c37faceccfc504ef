package orchestrator

import (
	"context"

	"github.com/parley-ai/parley/llm"
)

// ToolRegistry is the slice of the tool server registry the
// orchestrator consumes: catalogue for advertisement, resolution, and
// execution.
type ToolRegistry interface {
	ToolCatalogue() []llm.ToolSpec
	ResolveTool(tool string) (string, error)
	ExecuteTool(ctx context.Context, server, tool string, args map[string]interface{}) (map[string]interface{}, error)
}

// MessagePersister stores messages produced during a turn. The
// orchestrator holds no conversation state of its own; a nil persister
// simply skips persistence.
type MessagePersister interface {
	AppendMessage(ctx context.Context, conversationID string, msg llm.Message) error
}

// HistoryLoader supplies prior conversation messages in chronological
// order.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, conversationID string) ([]llm.Message, error)
}

// CredentialStore resolves the vendor credential for a provider on
// behalf of a principal.
type CredentialStore interface {
	CredentialFor(ctx context.Context, providerID, principal string) (string, error)
}

// StreamFunc receives ordered text fragments of the terminal answer
// during a streaming turn. Returning an error stops fragment delivery
// and aborts the turn.
type StreamFunc func(fragment string) error
