package toolserver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ToolDescriptor describes one tool advertised by a server. Disabled
// tools stay in the document so the flag survives refreshes.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
}

// ServerConfig describes one external tool server: how to launch it and
// which of its tools are usable.
type ServerConfig struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Disabled    bool              `json:"disabled,omitempty"`
	Description string            `json:"description,omitempty"`
	Tools       []ToolDescriptor  `json:"tools,omitempty"`
}

// Document is the on-disk tool server configuration, keyed by server
// name under "mcpServers". Load(Save(doc)) round-trips structurally.
type Document struct {
	Servers map[string]*ServerConfig `json:"mcpServers"`
}

// DefaultDocument returns the starter configuration written when no
// document exists yet. All servers begin disabled so nothing launches
// until an operator opts in.
func DefaultDocument() *Document {
	return &Document{
		Servers: map[string]*ServerConfig{
			"filesystem": {
				Command:     "npx",
				Args:        []string{"-y", "@modelcontextprotocol/server-filesystem", "/tmp"},
				Disabled:    true,
				Description: "Read and write files under a sandbox root",
			},
			"brave-search": {
				Command:     "npx",
				Args:        []string{"-y", "@modelcontextprotocol/server-brave-search"},
				Env:         map[string]string{"BRAVE_API_KEY": ""},
				Disabled:    true,
				Description: "Web search via the Brave Search API",
			},
			"sqlite": {
				Command:     "npx",
				Args:        []string{"-y", "@modelcontextprotocol/server-sqlite", "--db-path", "/tmp/parley.db"},
				Disabled:    true,
				Description: "Query a local SQLite database",
			},
		},
	}
}

// LoadDocument reads the configuration document at path. A missing file
// yields the default document, which is written back so subsequent
// loads see it.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		doc := DefaultDocument()
		if err := SaveDocument(path, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tool server config: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tool server config: %w", err)
	}
	if doc.Servers == nil {
		doc.Servers = make(map[string]*ServerConfig)
	}
	return &doc, nil
}

// SaveDocument writes the configuration document to path, creating
// parent directories as needed.
func SaveDocument(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tool server config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tool server config: %w", err)
	}
	return nil
}

// clone deep-copies a server config so registry reads hand out
// snapshots rather than aliases into guarded state.
func (c *ServerConfig) clone() *ServerConfig {
	out := &ServerConfig{
		Command:     c.Command,
		Disabled:    c.Disabled,
		Description: c.Description,
	}
	if c.Args != nil {
		out.Args = append([]string(nil), c.Args...)
	}
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	if c.Tools != nil {
		out.Tools = append([]ToolDescriptor(nil), c.Tools...)
	}
	return out
}
