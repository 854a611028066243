// Package config loads agentpipe configuration from a TOML file, .env files
// and process environment variables. Environment variables win over file
// values so deployments can override a checked-in config without editing it.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variable names recognized for provider credentials.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvBraveAPIKey     = "BRAVE_API_KEY"
)

// Config is the root configuration for CLI and server processes.
type Config struct {
	DefaultProvider string                     `toml:"default_provider"`
	Providers       map[string]*ProviderConfig `toml:"provider"`
	Server          ServerConfig               `toml:"server"`
	Session         SessionConfig              `toml:"session"`
	Trace           TraceConfig                `toml:"trace"`
	Search          SearchConfig               `toml:"search"`
}

// ProviderConfig configures one hosted LLM provider. BaseURL points the
// openai provider at an OpenAI-compatible local endpoint such as Ollama.
type ProviderConfig struct {
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// ServerConfig configures the remote agent HTTP server.
type ServerConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

// SessionConfig selects the session backend. Backend is "memory" or
// "sqlite"; Path applies to the sqlite backend.
type SessionConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// TraceConfig configures OTLP trace export. Tracing stays off unless Enabled
// is set.
type TraceConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Insecure bool   `toml:"insecure"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey string `toml:"api_key"`
}

// Load builds the configuration: defaults, then the config file (if present),
// then .env files, then process environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DefaultProvider: "openai",
		Providers: map[string]*ProviderConfig{
			"openai":    {Model: "gpt-4o-mini"},
			"anthropic": {Model: "claude-sonnet-4-20250514"},
			"gemini":    {Model: "gemini-2.0-flash"},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Session: SessionConfig{
			Backend: "memory",
			Path:    defaultSessionDBPath(),
		},
	}

	path := configPath()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	loadDotEnv()
	cfg.applyEnv()

	return cfg, nil
}

// applyEnv copies recognized environment variables over file values.
func (c *Config) applyEnv() {
	setKey := func(provider, envName string) {
		if v := os.Getenv(envName); v != "" {
			if c.Providers[provider] == nil {
				c.Providers[provider] = &ProviderConfig{}
			}
			c.Providers[provider].APIKey = v
		}
	}

	setKey("openai", EnvOpenAIAPIKey)
	setKey("anthropic", EnvAnthropicAPIKey)
	setKey("gemini", EnvGeminiAPIKey)

	if v := os.Getenv(EnvBraveAPIKey); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("AGENTPIPE_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AGENTPIPE_SERVER_TOKEN"); v != "" {
		c.Server.Token = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Trace.Enabled = true
		c.Trace.Endpoint = v
	}
}

// Provider returns the configuration for the named provider, or an empty one
// when nothing is configured.
func (c *Config) Provider(name string) *ProviderConfig {
	if p, ok := c.Providers[name]; ok && p != nil {
		return p
	}
	return &ProviderConfig{}
}

// loadDotEnv loads .env from the working directory then the home directory.
// Existing environment variables are never overwritten.
func loadDotEnv() {
	loadIfExists(".env")
	if home, err := os.UserHomeDir(); err == nil {
		loadIfExists(filepath.Join(home, ".env"))
	}
}

func loadIfExists(path string) {
	if _, err := os.Stat(path); err == nil {
		_ = godotenv.Load(path)
	}
}

func configPath() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "agentpipe", "config.toml")
}

func defaultSessionDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "agentpipe", "sessions.db")
}
