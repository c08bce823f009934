// Package config handles mcpbridge configuration loading.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/mcpbridge/config.yaml, /etc/mcpbridge/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mcpbridge", "config.yaml"))
	}

	paths = append(paths, "/etc/mcpbridge/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all mcpbridge configuration.
type Config struct {
	LogLevel  string    `yaml:"log_level" toml:"log_level"`
	LogFormat string    `yaml:"log_format" toml:"log_format"` // text (default) or json
	MCP       MCPConfig `yaml:"mcp" toml:"mcp"`
}

// MCPConfig lists the remote MCP servers whose tools are exposed to the
// agent. Two shapes are accepted: a servers list, or the legacy single
// record with enabled/endpoint at the top level of the mcp section. When
// both are present the servers list wins.
type MCPConfig struct {
	// Headers are additional HTTP headers sent with every request
	// (e.g., Authorization).
	Headers map[string]string `yaml:"headers" toml:"headers"`

	Servers []MCPServerConfig `yaml:"servers" toml:"servers"`

	// Legacy single-endpoint shape.
	Enabled  *bool  `yaml:"enabled" toml:"enabled"`
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// MCPServerConfig configures one remote MCP endpoint.
type MCPServerConfig struct {
	// Label is the human-readable name used in tool keys. Optional;
	// derived from the URL hostname when empty.
	Label string `yaml:"label" toml:"label"`

	// URL is the Streamable HTTP endpoint.
	URL string `yaml:"url" toml:"url"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled" toml:"enabled"`
}

// IsEnabled reports whether the server is enabled, treating an omitted
// value as enabled.
func (s MCPServerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// EffectiveServers returns the configured servers, normalizing the
// legacy single-record shape into a one-element list.
func (m MCPConfig) EffectiveServers() []MCPServerConfig {
	if len(m.Servers) > 0 {
		return m.Servers
	}
	if m.Endpoint == "" {
		return nil
	}
	return []MCPServerConfig{{URL: m.Endpoint, Enabled: m.Enabled}}
}

// Load reads configuration from a YAML file, or a TOML file when the
// path ends in .toml. Environment variables are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for values that can never work.
// Disabled servers are not checked.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}

	var errs []error
	for i, s := range c.MCP.EffectiveServers() {
		if !s.IsEnabled() {
			continue
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp server %d: url is required", i))
			continue
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			errs = append(errs, fmt.Errorf("mcp server %d: %w", i, err))
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("mcp server %d: unsupported scheme %q", i, u.Scheme))
		}
	}
	return errors.Join(errs...)
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}
