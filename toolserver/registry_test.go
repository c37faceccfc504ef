package toolserver

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

// fakeSession scripts listTools/callTool responses for registry tests.
type fakeSession struct {
	tools      []ToolDefinition
	listErr    error
	callResult map[string]interface{}
	callErr    error
	closed     bool
}

func (s *fakeSession) listTools(ctx context.Context) ([]ToolDefinition, error) {
	return s.tools, s.listErr
}

func (s *fakeSession) callTool(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	return s.callResult, s.callErr
}

func (s *fakeSession) close() error {
	s.closed = true
	return nil
}

func newTestRegistry(t *testing.T, servers map[string]*ServerConfig) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	if err := SaveDocument(path, &Document{Servers: servers}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	registry, err := NewRegistry(path, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

func TestEnableDisableServer_Idempotent(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})

	for i := 0; i < 2; i++ {
		if err := registry.DisableServer("web"); err != nil {
			t.Fatalf("DisableServer #%d: %v", i+1, err)
		}
	}
	if len(registry.ListEnabledServers()) != 0 {
		t.Error("disabled server should not be listed as enabled")
	}

	for i := 0; i < 2; i++ {
		if err := registry.EnableServer("web"); err != nil {
			t.Fatalf("EnableServer #%d: %v", i+1, err)
		}
	}
	if len(registry.ListEnabledServers()) != 1 {
		t.Error("enabled server should be listed")
	}
}

func TestEnableDisableTool_Idempotent(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})

	for i := 0; i < 2; i++ {
		if err := registry.DisableTool("web", "search"); err != nil {
			t.Fatalf("DisableTool #%d: %v", i+1, err)
		}
	}
	cfg, err := registry.GetServer("web")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Tools[0].Disabled {
		t.Error("tool should be disabled")
	}

	for i := 0; i < 2; i++ {
		if err := registry.EnableTool("web", "search"); err != nil {
			t.Fatalf("EnableTool #%d: %v", i+1, err)
		}
	}
	cfg, _ = registry.GetServer("web")
	if cfg.Tools[0].Disabled {
		t.Error("tool should be enabled")
	}
}

func TestAddServer_ReplaceTearsDownSession(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "old-cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})
	fake := &fakeSession{callResult: map[string]interface{}{}}
	registry.startSession = func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
		return fake, nil
	}

	if _, err := registry.ExecuteTool(context.Background(), "web", "search", nil); err != nil {
		t.Fatal(err)
	}
	if err := registry.AddServer("web", &ServerConfig{Command: "new-cmd", Tools: []ToolDescriptor{{Name: "search"}}}); err != nil {
		t.Fatal(err)
	}

	if !fake.closed {
		t.Error("replacing a server should close its stale session")
	}
	cfg, err := registry.GetServer("web")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Command != "new-cmd" {
		t.Errorf("command = %q, want the replacement", cfg.Command)
	}
}

func TestMutations_Persist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	if err := SaveDocument(path, &Document{Servers: map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	}}); err != nil {
		t.Fatal(err)
	}
	registry, err := NewRegistry(path, 0, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if err := registry.DisableServer("web"); err != nil {
		t.Fatal(err)
	}
	if err := registry.DisableTool("web", "search"); err != nil {
		t.Fatal(err)
	}

	// A fresh registry over the same file observes the mutations.
	reloaded, err := NewRegistry(path, 0, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := reloaded.GetServer("web")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Disabled || !cfg.Tools[0].Disabled {
		t.Errorf("mutations were not persisted: %+v", cfg)
	}
}

func TestOperations_NotFound(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})

	var notFound *NotFoundError
	if err := registry.EnableServer("nope"); !errors.As(err, &notFound) {
		t.Errorf("EnableServer: %v", err)
	}
	if err := registry.DisableTool("web", "nope"); !errors.As(err, &notFound) {
		t.Errorf("DisableTool: %v", err)
	}
	if err := registry.RemoveServer("nope"); !errors.As(err, &notFound) {
		t.Errorf("RemoveServer: %v", err)
	}
	if err := registry.UpdateServer("nope", &ServerConfig{Command: "cmd"}); !errors.As(err, &notFound) {
		t.Errorf("UpdateServer: %v", err)
	}
}

func TestResolveTool(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web":      {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
		"files":    {Command: "cmd", Tools: []ToolDescriptor{{Name: "read_file"}}},
		"offline":  {Command: "cmd", Disabled: true, Tools: []ToolDescriptor{{Name: "archive"}}},
		"switched": {Command: "cmd", Tools: []ToolDescriptor{{Name: "hidden", Disabled: true}}},
	})

	server, err := registry.ResolveTool("search")
	if err != nil {
		t.Fatalf("ResolveTool: %v", err)
	}
	if server != "web" {
		t.Errorf("server = %q, want web", server)
	}

	var notFound *NotFoundError
	if _, err := registry.ResolveTool("archive"); !errors.As(err, &notFound) {
		t.Errorf("tool on a disabled server should be NotFound, got %v", err)
	}
	if _, err := registry.ResolveTool("hidden"); !errors.As(err, &notFound) {
		t.Errorf("disabled tool should be NotFound, got %v", err)
	}
	if _, err := registry.ResolveTool("nope"); !errors.As(err, &notFound) {
		t.Errorf("unknown tool should be NotFound, got %v", err)
	}
}

func TestResolveTool_Ambiguous(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web-a": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
		"web-b": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})

	_, err := registry.ResolveTool("search")
	var ambiguous *AmbiguousToolError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousToolError, got %v", err)
	}
	if !reflect.DeepEqual(ambiguous.Servers, []string{"web-a", "web-b"}) {
		t.Errorf("ambiguous servers = %v", ambiguous.Servers)
	}
}

func TestResolveTool_DisablingRemovesAmbiguity(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web-a": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
		"web-b": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})

	if err := registry.DisableServer("web-b"); err != nil {
		t.Fatal(err)
	}
	server, err := registry.ResolveTool("search")
	if err != nil {
		t.Fatalf("ResolveTool after disable: %v", err)
	}
	if server != "web-a" {
		t.Errorf("server = %q", server)
	}
}

func TestRefreshTools(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{
			{Name: "search", Disabled: true},
			{Name: "stale"},
		}},
	})
	fake := &fakeSession{tools: []ToolDefinition{
		{Name: "search", Description: "Search the web", InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"query"},
		}},
		{Name: "news", Description: "Recent news"},
	}}
	registry.startSession = func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
		return fake, nil
	}

	if err := registry.RefreshTools(context.Background(), "web"); err != nil {
		t.Fatalf("RefreshTools: %v", err)
	}

	cfg, err := registry.GetServer("web")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Tools) != 2 {
		t.Fatalf("tools = %+v", cfg.Tools)
	}
	if cfg.Tools[0].Name != "search" || !cfg.Tools[0].Disabled {
		t.Errorf("disabled flag should survive refresh: %+v", cfg.Tools[0])
	}
	if cfg.Tools[1].Name != "news" || cfg.Tools[1].Disabled {
		t.Errorf("new tool should arrive enabled: %+v", cfg.Tools[1])
	}

	// The refreshed schema feeds the catalogue; the disabled tool does not.
	specs := registry.ToolCatalogue()
	if len(specs) != 1 || specs[0].Name != "news" {
		t.Errorf("catalogue = %+v", specs)
	}
}

func TestRefreshTools_FailureKeepsPreviousList(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})
	registry.startSession = func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
		return &fakeSession{listErr: errors.New("boom")}, nil
	}

	err := registry.RefreshTools(context.Background(), "web")
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}

	cfg, _ := registry.GetServer("web")
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "search" {
		t.Errorf("previous tool list should be intact: %+v", cfg.Tools)
	}
}

func TestExecuteTool(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})
	registry.startSession = func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
		return &fakeSession{callResult: map[string]interface{}{"result": "3 links"}}, nil
	}

	result, err := registry.ExecuteTool(context.Background(), "web", "search", map[string]interface{}{"query": "cats"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if result["result"] != "3 links" {
		t.Errorf("result = %+v", result)
	}
}

func TestExecuteTool_Failures(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web":     {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
		"offline": {Command: "cmd", Disabled: true},
	})
	registry.startSession = func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
		return &fakeSession{callErr: errors.New("subprocess died")}, nil
	}

	var notFound *NotFoundError
	if _, err := registry.ExecuteTool(context.Background(), "nope", "search", nil); !errors.As(err, &notFound) {
		t.Errorf("unknown server: %v", err)
	}

	var execErr *ExecutionError
	if _, err := registry.ExecuteTool(context.Background(), "offline", "search", nil); !errors.As(err, &execErr) {
		t.Errorf("disabled server: %v", err)
	}
	if _, err := registry.ExecuteTool(context.Background(), "web", "search", nil); !errors.As(err, &execErr) {
		t.Errorf("session failure: %v", err)
	}
}

func TestDisableServer_TearsDownSession(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})
	fake := &fakeSession{callResult: map[string]interface{}{}}
	registry.startSession = func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
		return fake, nil
	}

	if _, err := registry.ExecuteTool(context.Background(), "web", "search", nil); err != nil {
		t.Fatal(err)
	}
	if err := registry.DisableServer("web"); err != nil {
		t.Fatal(err)
	}
	if !fake.closed {
		t.Error("disabling a server should close its session")
	}
}

func TestClose(t *testing.T) {
	registry := newTestRegistry(t, map[string]*ServerConfig{
		"web": {Command: "cmd", Tools: []ToolDescriptor{{Name: "search"}}},
	})
	fake := &fakeSession{callResult: map[string]interface{}{}}
	registry.startSession = func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error) {
		return fake, nil
	}

	if _, err := registry.ExecuteTool(context.Background(), "web", "search", nil); err != nil {
		t.Fatal(err)
	}
	if err := registry.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fake.closed {
		t.Error("Close should terminate live sessions")
	}
}
