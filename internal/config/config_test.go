package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	// Create a temp config file
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("log_level: debug\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("log_level: info\n"), 0600)

	t.Chdir(dir)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ServerList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte(`
mcp:
  headers:
    Authorization: Bearer abc
  servers:
    - label: docs
      url: https://mcp.example.com/rpc
    - url: http://localhost:9000/mcp
      enabled: false
`), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	servers := cfg.MCP.EffectiveServers()
	if len(servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(servers))
	}
	if servers[0].Label != "docs" || servers[0].URL != "https://mcp.example.com/rpc" {
		t.Errorf("servers[0] = %+v", servers[0])
	}
	if !servers[0].IsEnabled() {
		t.Error("servers[0] should default to enabled")
	}
	if servers[1].IsEnabled() {
		t.Error("servers[1] should be disabled")
	}
	if cfg.MCP.Headers["Authorization"] != "Bearer abc" {
		t.Errorf("headers = %v", cfg.MCP.Headers)
	}
}

func TestLoad_LegacyEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("mcp:\n  enabled: true\n  endpoint: https://legacy.example.com/mcp\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	servers := cfg.MCP.EffectiveServers()
	if len(servers) != 1 {
		t.Fatalf("got %d servers, want 1", len(servers))
	}
	if servers[0].URL != "https://legacy.example.com/mcp" || !servers[0].IsEnabled() {
		t.Errorf("servers[0] = %+v", servers[0])
	}
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	os.WriteFile(path, []byte(`
log_level = "debug"

[[mcp.servers]]
label = "docs"
url = "https://mcp.example.com/rpc"
`), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if got := cfg.MCP.EffectiveServers(); len(got) != 1 || got[0].Label != "docs" {
		t.Errorf("servers = %+v", got)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("mcp:\n  headers:\n    Authorization: ${MCPBRIDGE_TEST_TOKEN}\n"), 0600)
	t.Setenv("MCPBRIDGE_TEST_TOKEN", "secret123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.MCP.Headers["Authorization"] != "secret123" {
		t.Errorf("Authorization = %q, want %q", cfg.MCP.Headers["Authorization"], "secret123")
	}
}

func TestLoad_RejectsBadScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("mcp:\n  servers:\n    - url: ftp://example.com\n"), 0600)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

func TestLoad_DisabledServerNotValidated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("mcp:\n  servers:\n    - url: \"\"\n      enabled: false\n"), 0600)

	if _, err := Load(path); err != nil {
		t.Fatalf("Load error: %v", err)
	}
}

func TestLoad_BadLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("log_level: loud\n"), 0600)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"TRACE", LevelTrace, false},
		{" debug ", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger_TraceName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace, "text")
	logger.Log(context.Background(), LevelTrace, "wire")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("output = %q, want level=TRACE", buf.String())
	}
}
