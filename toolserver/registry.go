package toolserver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/parley-ai/parley/llm"
)

const defaultExecTimeout = 60 * time.Second

// Registry owns the configured tool servers, their enabled state, and
// their live stdio sessions. Every mutation persists the configuration
// document immediately; reads hand out snapshots, so a server disabled
// mid-turn does not invalidate a call already in flight.
type Registry struct {
	path        string
	execTimeout time.Duration
	logger      zerolog.Logger

	mu          sync.RWMutex
	doc         *Document
	definitions map[string][]ToolDefinition // per server, refreshed live schemas

	sessMu   sync.Mutex
	sessions map[string]serverSession

	// Replaceable in tests to avoid spawning subprocesses.
	startSession func(ctx context.Context, name string, cfg *ServerConfig, logger zerolog.Logger) (serverSession, error)
}

// NewRegistry loads the configuration document at path, writing the
// default document when none exists.
func NewRegistry(path string, execTimeout time.Duration, logger zerolog.Logger) (*Registry, error) {
	logger = logger.With().Str("component", "toolserver_registry").Logger()

	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	if execTimeout <= 0 {
		execTimeout = defaultExecTimeout
	}

	logger.Info().Int("server_count", len(doc.Servers)).Str("path", path).Msg("Loaded tool server configuration")
	return &Registry{
		path:         path,
		execTimeout:  execTimeout,
		logger:       logger,
		doc:          doc,
		definitions:  make(map[string][]ToolDefinition),
		sessions:     make(map[string]serverSession),
		startSession: newSession,
	}, nil
}

// saveLocked persists the document. Callers hold the write lock.
func (r *Registry) saveLocked() error {
	return SaveDocument(r.path, r.doc)
}

// AddServer registers a server and persists the document. Adding a
// name that already exists replaces its configuration; the old session
// is torn down so the next call launches the new command.
func (r *Registry) AddServer(name string, cfg *ServerConfig) error {
	r.mu.Lock()
	_, existed := r.doc.Servers[name]
	r.doc.Servers[name] = cfg.clone()
	err := r.saveLocked()
	r.mu.Unlock()

	if existed {
		r.dropSession(name)
	}
	r.logger.Info().Str("server", name).Msg("Added tool server")
	return err
}

// UpdateServer replaces a server's configuration. The server's live
// session is torn down so the next call relaunches with the new
// command.
func (r *Registry) UpdateServer(name string, cfg *ServerConfig) error {
	r.mu.Lock()
	if _, ok := r.doc.Servers[name]; !ok {
		r.mu.Unlock()
		return &NotFoundError{Kind: "server", Name: name}
	}
	r.doc.Servers[name] = cfg.clone()
	err := r.saveLocked()
	r.mu.Unlock()

	r.dropSession(name)
	r.logger.Info().Str("server", name).Msg("Updated tool server")
	return err
}

// RemoveServer deletes a server and tears down its session.
func (r *Registry) RemoveServer(name string) error {
	r.mu.Lock()
	if _, ok := r.doc.Servers[name]; !ok {
		r.mu.Unlock()
		return &NotFoundError{Kind: "server", Name: name}
	}
	delete(r.doc.Servers, name)
	delete(r.definitions, name)
	err := r.saveLocked()
	r.mu.Unlock()

	r.dropSession(name)
	r.logger.Info().Str("server", name).Msg("Removed tool server")
	return err
}

// EnableServer marks a server usable. Idempotent.
func (r *Registry) EnableServer(name string) error {
	return r.setServerDisabled(name, false)
}

// DisableServer marks a server unusable and tears down its session.
// Idempotent.
func (r *Registry) DisableServer(name string) error {
	if err := r.setServerDisabled(name, true); err != nil {
		return err
	}
	r.dropSession(name)
	return nil
}

func (r *Registry) setServerDisabled(name string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.doc.Servers[name]
	if !ok {
		return &NotFoundError{Kind: "server", Name: name}
	}
	cfg.Disabled = disabled
	return r.saveLocked()
}

// EnableTool marks one of a server's tools usable. Idempotent.
func (r *Registry) EnableTool(server, tool string) error {
	return r.setToolDisabled(server, tool, false)
}

// DisableTool marks one of a server's tools unusable. Idempotent.
func (r *Registry) DisableTool(server, tool string) error {
	return r.setToolDisabled(server, tool, true)
}

func (r *Registry) setToolDisabled(server, tool string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.doc.Servers[server]
	if !ok {
		return &NotFoundError{Kind: "server", Name: server}
	}
	for i := range cfg.Tools {
		if cfg.Tools[i].Name == tool {
			cfg.Tools[i].Disabled = disabled
			return r.saveLocked()
		}
	}
	return &NotFoundError{Kind: "tool", Name: tool}
}

// GetServer returns a snapshot of one server's configuration.
func (r *Registry) GetServer(name string) (*ServerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.doc.Servers[name]
	if !ok {
		return nil, &NotFoundError{Kind: "server", Name: name}
	}
	return cfg.clone(), nil
}

// ListServers returns a snapshot of every configured server.
func (r *Registry) ListServers() map[string]*ServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*ServerConfig, len(r.doc.Servers))
	for name, cfg := range r.doc.Servers {
		out[name] = cfg.clone()
	}
	return out
}

// ListEnabledServers returns a snapshot of servers with disabled=false.
// The per-turn tool catalogue is built from this set.
func (r *Registry) ListEnabledServers() map[string]*ServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*ServerConfig)
	for name, cfg := range r.doc.Servers {
		if !cfg.Disabled {
			out[name] = cfg.clone()
		}
	}
	return out
}

// ToolCatalogue builds provider-facing tool specs from the enabled
// tools of enabled servers. Live-refreshed schemas are used when
// available; tools known only from the document get an open object
// schema.
func (r *Registry) ToolCatalogue() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var specs []llm.ToolSpec
	for name, cfg := range r.doc.Servers {
		if cfg.Disabled {
			continue
		}
		defs := lo.SliceToMap(r.definitions[name], func(d ToolDefinition) (string, ToolDefinition) {
			return d.Name, d
		})
		for _, tool := range cfg.Tools {
			if tool.Disabled {
				continue
			}
			spec := llm.ToolSpec{
				Name:        tool.Name,
				Description: tool.Description,
				Schema:      llm.ToolSchema{Type: "object"},
			}
			if def, ok := defs[tool.Name]; ok {
				spec.Schema = toToolSchema(def.InputSchema)
				if spec.Description == "" {
					spec.Description = def.Description
				}
			}
			specs = append(specs, spec)
		}
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func toToolSchema(raw map[string]interface{}) llm.ToolSchema {
	schema := llm.ToolSchema{Type: "object"}
	if t, ok := raw["type"].(string); ok && t != "" {
		schema.Type = t
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		schema.Properties = props
	}
	switch required := raw["required"].(type) {
	case []string:
		schema.Required = required
	case []interface{}:
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

// ResolveTool finds the single enabled server exposing the named
// enabled tool. More than one match is an error by policy; first-match
// would hide a real conflict.
func (r *Registry) ResolveTool(tool string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []string
	for name, cfg := range r.doc.Servers {
		if cfg.Disabled {
			continue
		}
		for _, t := range cfg.Tools {
			if !t.Disabled && t.Name == tool {
				matches = append(matches, name)
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: "tool", Name: tool}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousToolError{Tool: tool, Servers: matches}
	}
}

// RefreshTools relaunches or reuses the server's session, requests its
// tool listing, and replaces the server's tool list. Disabled flags
// survive by name. Any failure leaves the previous list intact; the
// caller decides whether to log or abort.
func (r *Registry) RefreshTools(ctx context.Context, name string) error {
	sess, err := r.getSession(ctx, name)
	if err != nil {
		return &ExecutionError{Server: name, Err: err}
	}

	defs, err := sess.listTools(ctx)
	if err != nil {
		r.dropSession(name)
		return &ExecutionError{Server: name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.doc.Servers[name]
	if !ok {
		return &NotFoundError{Kind: "server", Name: name}
	}

	disabled := make(map[string]bool)
	for _, t := range cfg.Tools {
		if t.Disabled {
			disabled[t.Name] = true
		}
	}

	cfg.Tools = lo.Map(defs, func(d ToolDefinition, _ int) ToolDescriptor {
		return ToolDescriptor{
			Name:        d.Name,
			Description: d.Description,
			Disabled:    disabled[d.Name],
		}
	})
	r.definitions[name] = defs

	r.logger.Info().Str("server", name).Int("tool_count", len(defs)).Msg("Refreshed tool list")
	return r.saveLocked()
}

// ExecuteTool invokes a tool over the server's session, bounded by the
// registry's execution timeout.
func (r *Registry) ExecuteTool(ctx context.Context, server, tool string, args map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	cfg, ok := r.doc.Servers[server]
	if ok {
		cfg = cfg.clone()
	}
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Kind: "server", Name: server}
	}
	if cfg.Disabled {
		return nil, &ExecutionError{Server: server, Tool: tool, Err: errServerDisabled}
	}

	sess, err := r.getSession(ctx, server)
	if err != nil {
		return nil, &ExecutionError{Server: server, Tool: tool, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.execTimeout)
	defer cancel()

	result, err := sess.callTool(ctx, tool, args)
	if err != nil {
		return nil, &ExecutionError{Server: server, Tool: tool, Err: err}
	}
	return result, nil
}

// getSession returns the cached session for a server, launching one if
// needed. Launches are serialized so concurrent turns never race two
// subprocesses for the same server.
func (r *Registry) getSession(ctx context.Context, name string) (serverSession, error) {
	r.sessMu.Lock()
	defer r.sessMu.Unlock()

	if sess, ok := r.sessions[name]; ok {
		return sess, nil
	}

	cfg, err := r.GetServer(name)
	if err != nil {
		return nil, err
	}

	sess, err := r.startSession(ctx, name, cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.sessions[name] = sess
	return sess, nil
}

// dropSession tears down a server's cached session if one exists.
func (r *Registry) dropSession(name string) {
	r.sessMu.Lock()
	sess, ok := r.sessions[name]
	delete(r.sessions, name)
	r.sessMu.Unlock()

	if ok {
		if err := sess.close(); err != nil {
			r.logger.Warn().Str("server", name).Err(err).Msg("Failed to close tool server session")
		}
	}
}

// Close terminates every live session.
func (r *Registry) Close() error {
	r.sessMu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]serverSession)
	r.sessMu.Unlock()

	var firstErr error
	for name, sess := range sessions {
		if err := sess.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.logger.Debug().Str("server", name).Msg("Closed tool server session")
	}
	return firstErr
}
