package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/toolserver"
)

const (
	// DefaultMaxIterations bounds the tool-call loop within one turn.
	DefaultMaxIterations = 10
	// DefaultMaxTokens applies when the request does not set one.
	DefaultMaxTokens = 1000

	maxTokensCeiling = 4000
	temperatureMax   = 2.0
)

// TurnRequest carries everything one orchestration turn needs. When
// Messages is empty and ConversationID is set, history is loaded via
// the HistoryLoader collaborator.
type TurnRequest struct {
	ConversationID string
	Principal      string
	ProviderID     string
	Model          string
	Credential     string
	System         string
	Messages       []llm.Message
	Temperature    *float64
	MaxTokens      int64
}

// ToolCallRecord is one executed tool call within a turn, in execution
// order.
type ToolCallRecord struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Server    string                 `json:"server"`
	Result    string                 `json:"result,omitempty"`
}

// TurnResult is the definitive output of a terminal turn.
type TurnResult struct {
	Text          string
	ToolCallChain []ToolCallRecord
	Usage         *llm.Usage
	Iterations    int
}

// Orchestrator drives the agentic loop: call the provider, execute any
// requested tool, feed the result back, repeat until a terminal answer
// or the iteration cap. It is stateless across turns; all per-turn
// state lives on the stack of Turn.
type Orchestrator struct {
	providers *llm.Registry
	tools     ToolRegistry
	logger    zerolog.Logger

	maxIterations int
	persister     MessagePersister
	history       HistoryLoader
	credentials   CredentialStore
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxIterations overrides the tool-call loop bound.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithPersister attaches a message persistence collaborator.
func WithPersister(p MessagePersister) Option {
	return func(o *Orchestrator) { o.persister = p }
}

// WithHistoryLoader attaches a history collaborator.
func WithHistoryLoader(h HistoryLoader) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithCredentialStore attaches a credential collaborator consulted
// when a request carries no explicit credential.
func WithCredentialStore(s CredentialStore) Option {
	return func(o *Orchestrator) { o.credentials = s }
}

// New creates an Orchestrator bound to a provider registry and a tool
// server registry.
func New(providers *llm.Registry, tools ToolRegistry, logger zerolog.Logger, opts ...Option) (*Orchestrator, error) {
	if providers == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if tools == nil {
		return nil, fmt.Errorf("tool server registry is required")
	}

	o := &Orchestrator{
		providers:     providers,
		tools:         tools,
		logger:        logger.With().Str("component", "orchestrator").Logger(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Turn runs one full orchestration cycle and returns the terminal
// answer with the chain of tool calls executed along the way.
func (o *Orchestrator) Turn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	return o.run(ctx, req, nil)
}

// TurnStream runs one orchestration cycle, delivering the terminal
// answer as ordered text fragments. Each provider call streams; the
// delivered fragments, the returned text, and the persisted message
// all come from the same generation. Tool-call replies are held back
// from the consumer. Providers that declare streaming unsupported fall
// back to a synchronous call delivered as a single fragment.
func (o *Orchestrator) TurnStream(ctx context.Context, req *TurnRequest, fn StreamFunc) (*TurnResult, error) {
	if fn == nil {
		return nil, fmt.Errorf("stream callback is required")
	}
	return o.run(ctx, req, fn)
}

func (o *Orchestrator) run(ctx context.Context, req *TurnRequest, fn StreamFunc) (*TurnResult, error) {
	client, llmReq, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With().Str("provider", req.ProviderID).Str("model", llmReq.Model).Logger()

	chain := make([]ToolCallRecord, 0)
	// Usage stays nil unless some response reported it.
	var usage *llm.Usage

	for iteration := 0; iteration < o.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, &CancelledError{Err: err}
		}

		var resp *llm.Response
		var err error
		if fn != nil {
			resp, err = o.generateStreaming(ctx, client, llmReq, fn)
		} else {
			resp, err = generateWithRetry(ctx, client, llmReq)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, &CancelledError{Err: ctx.Err()}
			}
			return nil, err
		}
		if resp.Usage != nil {
			if usage == nil {
				usage = &llm.Usage{}
			}
			usage.InputTokens += resp.Usage.InputTokens
			usage.OutputTokens += resp.Usage.OutputTokens
		}

		toolCall := resp.ToolCall()
		if toolCall == nil {
			text := resp.Text()
			o.persist(ctx, req, llm.NewTextMessage(llm.RoleAssistant, text))
			logger.Info().Int("iterations", len(chain)).Msg("Turn completed with terminal answer")
			return &TurnResult{
				Text:          text,
				ToolCallChain: chain,
				Usage:         usage,
				Iterations:    iteration + 1,
			}, nil
		}

		record, resultMsg, err := o.executeToolCall(ctx, toolCall)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *record)

		assistantMsg := llm.Message{
			Role: llm.RoleAssistant,
			Content: []llm.ContentBlock{{
				Type:    llm.ContentBlockTypeToolUse,
				ToolUse: toolCall,
			}},
		}
		llmReq.Messages = append(llmReq.Messages, assistantMsg, resultMsg)
		o.persist(ctx, req, assistantMsg)
		o.persist(ctx, req, resultMsg)

		logger.Debug().Str("tool", toolCall.Name).Str("server", record.Server).Int("iteration", iteration+1).Msg("Executed tool call")
	}

	logger.Warn().Int("max_iterations", o.maxIterations).Msg("Turn hit iteration cap")
	return nil, &LoopLimitError{Iterations: o.maxIterations}
}

// prepare validates the request and resolves the bound provider
// client. All failures here happen before any network or subprocess
// activity.
func (o *Orchestrator) prepare(ctx context.Context, req *TurnRequest) (llm.Client, *llm.Request, error) {
	if req == nil {
		return nil, nil, &ValidationError{Field: "request", Reason: "is required"}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > temperatureMax) {
		return nil, nil, &ValidationError{Field: "temperature", Reason: fmt.Sprintf("must be in [0, %g]", temperatureMax)}
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	if maxTokens < 1 || maxTokens > maxTokensCeiling {
		return nil, nil, &ValidationError{Field: "maxTokens", Reason: fmt.Sprintf("must be in [1, %d]", maxTokensCeiling)}
	}

	credential := req.Credential
	if credential == "" && o.credentials != nil {
		var err error
		credential, err = o.credentials.CredentialFor(ctx, req.ProviderID, req.Principal)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve credential for %s: %w", req.ProviderID, err)
		}
	}

	client, model, err := o.providers.ResolveClient(req.ProviderID, credential, req.Model)
	if err != nil {
		return nil, nil, err
	}

	messages := req.Messages
	if len(messages) == 0 && req.ConversationID != "" && o.history != nil {
		messages, err = o.history.LoadHistory(ctx, req.ConversationID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load history for %s: %w", req.ConversationID, err)
		}
	}

	specs := o.tools.ToolCatalogue()
	system := req.System
	if len(specs) > 0 {
		system = appendToolPrompt(system, specs)
	}

	return client, &llm.Request{
		Model:       model,
		Messages:    append([]llm.Message(nil), messages...),
		System:      system,
		Tools:       specs,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}, nil
}

// executeToolCall resolves and runs one tool call, returning the chain
// record and the tool-role message to feed back to the provider.
func (o *Orchestrator) executeToolCall(ctx context.Context, call *llm.ToolUseBlock) (*ToolCallRecord, llm.Message, error) {
	server, err := o.tools.ResolveTool(call.Name)
	if err != nil {
		return nil, llm.Message{}, fmt.Errorf("tool resolution failed for %q: %w", call.Name, err)
	}

	result, err := o.tools.ExecuteTool(ctx, server, call.Name, call.Input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, llm.Message{}, &CancelledError{Err: ctx.Err()}
		}
		return nil, llm.Message{}, err
	}

	serialized, err := json.Marshal(result)
	if err != nil {
		return nil, llm.Message{}, &toolserver.ExecutionError{Server: server, Tool: call.Name, Err: err}
	}

	record := &ToolCallRecord{
		Name:      call.Name,
		Arguments: call.Input,
		Server:    server,
		Result:    string(serialized),
	}
	return record, llm.NewToolResultMessage(call.ID, call.Name, string(serialized), false), nil
}

// persist appends a message through the collaborator when one is
// attached.
func (o *Orchestrator) persist(ctx context.Context, req *TurnRequest, msg llm.Message) {
	if o.persister == nil || req.ConversationID == "" {
		return
	}
	if err := o.persister.AppendMessage(ctx, req.ConversationID, msg); err != nil {
		o.logger.Warn().Str("conversation", req.ConversationID).Err(err).Msg("Failed to persist message")
	}
}

// appendToolPrompt augments the system prompt with a textual tool
// catalogue. Providers with native tool calling mostly ignore it, but
// it keeps models without that support on the JSON tool_call format
// the adapters sniff for.
func appendToolPrompt(system string, specs []llm.ToolSpec) string {
	var sb strings.Builder
	if system != "" {
		sb.WriteString(system)
		sb.WriteString("\n\n")
	}
	sb.WriteString("You have access to the following tools:\n")
	for _, spec := range specs {
		sb.WriteString("- ")
		sb.WriteString(spec.Name)
		if spec.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(spec.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nTo use a tool, reply with only a JSON object of the form ")
	sb.WriteString(`{"tool_call": {"name": "<tool>", "arguments": {...}}}. `)
	sb.WriteString("Otherwise reply normally.")
	return sb.String()
}
