package toolserver

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDocumentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_servers.json")

	doc := &Document{
		Servers: map[string]*ServerConfig{
			"web": {
				Command:     "npx",
				Args:        []string{"-y", "@modelcontextprotocol/server-brave-search"},
				Env:         map[string]string{"BRAVE_API_KEY": "secret"},
				Description: "Web search",
				Tools: []ToolDescriptor{
					{Name: "search", Description: "Search the web"},
					{Name: "news", Disabled: true},
				},
			},
			"disabled-server": {
				Command:  "uvx",
				Args:     []string{"some-server"},
				Disabled: true,
			},
		},
	}

	if err := SaveDocument(path, doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	loaded, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if !reflect.DeepEqual(doc, loaded) {
		t.Errorf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", doc, loaded)
	}
}

func TestLoadDocument_WritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mcp_servers.json")

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if len(doc.Servers) == 0 {
		t.Fatal("default document should declare example servers")
	}
	for name, cfg := range doc.Servers {
		if !cfg.Disabled {
			t.Errorf("default server %s should start disabled", name)
		}
	}

	// The default must now exist on disk and reload identically.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default document was not persisted: %v", err)
	}
	reloaded, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(doc, reloaded) {
		t.Error("default document did not round-trip")
	}
}

func TestLoadDocument_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_servers.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDocument(path); err == nil {
		t.Error("malformed document should fail to load")
	}
}
