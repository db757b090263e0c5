// Package config provides configuration loading and management for Atlas.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Atlas configuration
type Config struct {
	Models    ModelsConfig    `yaml:"models"`
	Loop      LoopConfig      `yaml:"loop"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Patterns  PatternsConfig  `yaml:"patterns"`
	NATS      NATSConfig      `yaml:"nats"`
	Tools     ToolsConfig     `yaml:"tools"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// ModelsConfig configures LLM endpoints and their capability assignments.
// Empty sections fall back to the built-in model registry defaults.
type ModelsConfig struct {
	// Capabilities maps a planner capability ("strategic", "tactical",
	// "operational", "fast") to its preferred endpoints and fallbacks.
	Capabilities map[string]CapabilityConfig `yaml:"capabilities"`

	// Endpoints maps an endpoint name to its connection settings.
	Endpoints map[string]EndpointConfig `yaml:"endpoints"`

	// Default is the endpoint used when a capability has no assignment.
	Default string `yaml:"default"`

	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
}

// CapabilityConfig assigns endpoints to one capability. Preferred endpoints
// are tried in order; fallbacks only after every preferred endpoint fails.
type CapabilityConfig struct {
	Preferred []string `yaml:"preferred"`
	Fallback  []string `yaml:"fallback"`
}

// EndpointConfig describes one model endpoint.
type EndpointConfig struct {
	// Provider is the wire format: "ollama", "openai", "groq" or "gemini".
	Provider string `yaml:"provider"`
	// URL is the API base URL (empty = provider default).
	URL string `yaml:"url"`
	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`
	// MaxTokens caps response length (0 = provider default).
	MaxTokens int `yaml:"max_tokens"`
}

// LoopConfig bounds the plan execution loop.
type LoopConfig struct {
	// MaxRetryAttempts is the total number of execution attempts per run.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// WorkspaceConfig configures the workspace settings
type WorkspaceConfig struct {
	// Path is the workspace root the file tool is confined to
	// (defaults to the current directory).
	Path string `yaml:"path"`
}

// PatternsConfig configures the plan pattern library.
type PatternsConfig struct {
	// Dir is the directory of JSON pattern files (empty = disabled).
	Dir string `yaml:"dir"`
	// Watch enables hot reload of the pattern directory.
	Watch bool `yaml:"watch"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// ToolsConfig configures tool executor settings
type ToolsConfig struct {
	// Allowlist is the list of allowed tool names (empty = allow all)
	Allowlist []string `yaml:"allowlist"`
	// PluginsDir is a directory of Go tool plugin sources checked during
	// self-regeneration (empty = skip the structural scan).
	PluginsDir string `yaml:"plugins_dir"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled).
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Timeout: 5 * time.Minute,
		},
		Loop: LoopConfig{
			MaxRetryAttempts: 3,
			RetryDelay:       2 * time.Second,
		},
		Workspace: WorkspaceConfig{
			Path: "", // Current directory
		},
		Patterns: PatternsConfig{
			Dir:   "",
			Watch: false,
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Tools: ToolsConfig{
			Allowlist: nil, // Allow all
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Loop.MaxRetryAttempts < 1 {
		return fmt.Errorf("loop.max_retry_attempts must be at least 1")
	}
	if c.Loop.RetryDelay < 0 {
		return fmt.Errorf("loop.retry_delay must not be negative")
	}
	for name, ep := range c.Models.Endpoints {
		if ep.Provider == "" {
			return fmt.Errorf("models.endpoints.%s.provider is required", name)
		}
		if ep.Model == "" {
			return fmt.Errorf("models.endpoints.%s.model is required", name)
		}
	}
	for name, cc := range c.Models.Capabilities {
		if len(cc.Preferred) == 0 {
			return fmt.Errorf("models.capabilities.%s.preferred is required", name)
		}
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Models
	if len(other.Models.Capabilities) > 0 {
		c.Models.Capabilities = other.Models.Capabilities
	}
	if len(other.Models.Endpoints) > 0 {
		c.Models.Endpoints = other.Models.Endpoints
	}
	if other.Models.Default != "" {
		c.Models.Default = other.Models.Default
	}
	if other.Models.Timeout != 0 {
		c.Models.Timeout = other.Models.Timeout
	}

	// Loop
	if other.Loop.MaxRetryAttempts != 0 {
		c.Loop.MaxRetryAttempts = other.Loop.MaxRetryAttempts
	}
	if other.Loop.RetryDelay != 0 {
		c.Loop.RetryDelay = other.Loop.RetryDelay
	}

	// Workspace
	if other.Workspace.Path != "" {
		c.Workspace.Path = other.Workspace.Path
	}

	// Patterns
	if other.Patterns.Dir != "" {
		c.Patterns.Dir = other.Patterns.Dir
		c.Patterns.Watch = other.Patterns.Watch
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	// Tools
	if len(other.Tools.Allowlist) > 0 {
		c.Tools.Allowlist = other.Tools.Allowlist
	}
	if other.Tools.PluginsDir != "" {
		c.Tools.PluginsDir = other.Tools.PluginsDir
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

// ParseCriteria turns a comma-separated "key=hint" list into a goal criteria
// map. A bare keyword maps to itself so "email,security" works as shorthand.
func ParseCriteria(s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	criteria := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, hint, found := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if !found || strings.TrimSpace(hint) == "" {
			criteria[key] = key
		} else {
			criteria[key] = strings.TrimSpace(hint)
		}
	}
	if len(criteria) == 0 {
		return nil
	}
	return criteria
}
