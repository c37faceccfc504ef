// Package config loads and saves the service configuration: provider
// credentials and endpoints, tool server settings, and orchestration
// limits. Values merge in order defaults < file < environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// OpenAIConfig represents configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// AnthropicConfig represents configuration for the Anthropic provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Anthropic API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// GoogleConfig represents configuration for the Google Gemini provider.
type GoogleConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Gemini API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// GroqConfig represents configuration for the Groq provider.
type GroqConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // Groq API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL
	Model   string `yaml:"model,omitempty"`    // Default model name
}

// OllamaConfig represents configuration for a local Ollama daemon.
type OllamaConfig struct {
	Host  string `yaml:"host,omitempty"`  // Ollama host (default: "http://localhost:11434")
	Model string `yaml:"model,omitempty"` // Default model name
}

// ToolServersConfig represents tool server registry settings.
type ToolServersConfig struct {
	ConfigPath      string `yaml:"config_path,omitempty"`      // Path to the mcpServers JSON document
	RefreshSchedule string `yaml:"refresh_schedule,omitempty"` // e.g., "15m", "2h", "0 */15 * * * *" (cron)
	ExecTimeout     int    `yaml:"exec_timeout,omitempty"`     // Tool execution timeout in seconds
}

// Config is the root service configuration.
type Config struct {
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Google    GoogleConfig    `yaml:"google,omitempty"`
	Groq      GroqConfig      `yaml:"groq,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`

	ToolServers ToolServersConfig `yaml:"tool_servers,omitempty"`

	ChatTimeout   int `yaml:"chat_timeout,omitempty"`   // Timeout in seconds for one turn
	MaxIterations int `yaml:"max_iterations,omitempty"` // Tool-call loop bound per turn
}

// GetConfigPath returns the config file path. Can be overridden via
// the PARLEY_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.parley/config.yaml"
	}
	return filepath.Join(homeDir, ".parley", "config.yaml")
}

// Defaults returns the baseline configuration before any file or
// environment overrides.
func Defaults() Config {
	return Config{
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		ToolServers: ToolServersConfig{
			ConfigPath:      defaultToolServerPath(),
			RefreshSchedule: "15m",
			ExecTimeout:     60,
		},
		ChatTimeout:   60,
		MaxIterations: 10,
	}
}

func defaultToolServerPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.parley/mcp_servers.json"
	}
	return filepath.Join(homeDir, ".parley", "mcp_servers.json")
}

// Load reads the configuration at path, merging file values over
// defaults and environment credentials over empty fields. A missing
// file yields defaults.
func Load(path string) (*Config, error) {
	defaults := Defaults()

	expandedPath := expandPath(path)
	data, err := os.ReadFile(expandedPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", expandedPath, err)
	}
	if err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", expandedPath, err)
		}
		if err := mergo.Merge(&defaults, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	applyEnv(&defaults)
	return &defaults, nil
}

// Save writes the configuration to path, creating parent directories
// as needed.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// applyEnv fills unset credentials and endpoints from the conventional
// environment variables.
func applyEnv(cfg *Config) {
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.Google.APIKey == "" {
		cfg.Google.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.Groq.APIKey == "" {
		cfg.Groq.APIKey = os.Getenv("GROQ_API_KEY")
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.Ollama.Host = host
	}
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
