package toolserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ToolDefinition is a tool as advertised by a live server, including
// its input schema. Definitions live in memory only; the persisted
// document keeps just name/description/disabled.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// serverSession is one live connection to a tool server. The stdio
// implementation is the only production one; tests substitute fakes.
type serverSession interface {
	listTools(ctx context.Context) ([]ToolDefinition, error)
	callTool(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error)
	close() error
}

// session is one stdio connection to a tool server subprocess. The
// wire protocol is strictly sequential request/response, so every call
// holds the session mutex for its full duration.
type session struct {
	mu      sync.Mutex
	client  *client.Client
	command string
	logger  zerolog.Logger
}

// newSession launches the server subprocess and performs the
// initialize handshake.
func newSession(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command is required for server %s", name)
	}

	logger = logger.With().Str("component", "stdio_session").Str("server", name).Logger()

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	logger.Info().Str("command", cfg.Command).Strs("args", cfg.Args).Msg("Launching tool server subprocess")
	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to launch tool server")
		return nil, fmt.Errorf("failed to launch tool server %s: %w", name, err)
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "parley",
				Version: "1.0.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		_ = mcpClient.Close()
		logger.Error().Err(err).Msg("Initialize handshake failed")
		return nil, fmt.Errorf("failed to initialize tool server %s: %w", name, err)
	}

	logger.Info().Msg("Tool server session established")
	return &session{
		client:  mcpClient,
		command: cfg.Command,
		logger:  logger,
	}, nil
}

// listTools requests the server's advertised tool list.
func (s *session) listTools(ctx context.Context) ([]ToolDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	s.logger.Debug().Int("tool_count", len(result.Tools)).Msg("Received tool listing")

	return lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		inputSchema := map[string]interface{}{
			"type": tool.InputSchema.Type,
		}
		if tool.InputSchema.Properties != nil {
			inputSchema["properties"] = tool.InputSchema.Properties
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema["required"] = tool.InputSchema.Required
		}
		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchema,
		}
	}), nil
}

// callTool invokes a tool and flattens the response content into a
// result map. A tool-reported error surfaces as an error, not a
// payload.
func (s *session) callTool(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug().Str("tool", name).Msg("Invoking tool")
	result, err := s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke tool %s: %w", name, err)
	}

	var texts []string
	for _, content := range result.Content {
		if textContent, ok := mcp.AsTextContent(content); ok {
			texts = append(texts, textContent.Text)
		}
	}

	if result.IsError {
		msg := "tool reported an error"
		if len(texts) > 0 {
			msg = texts[0]
		}
		return nil, fmt.Errorf("%s", msg)
	}

	output := make(map[string]interface{})
	switch len(texts) {
	case 0:
	case 1:
		output["result"] = texts[0]
	default:
		output["result"] = texts
	}
	return output, nil
}

// close terminates the subprocess session.
func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
