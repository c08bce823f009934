package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nugget/thane-mcpbridge/internal/buildinfo"
)

// ProtocolVersion is the MCP protocol version we advertise during initialization.
const ProtocolVersion = "2025-03-26"

// ToolDescriptor is an MCP tool as returned by tools/list. The input
// schema is kept as raw JSON; the client never validates against it.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ContentBlock is a single content item in a tools/call result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// callToolResult is the conventional shape of a tools/call result.
type callToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// serverInfo is returned in the initialize response.
type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult is the subset of the initialize result we log.
type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      serverInfo `json:"serverInfo"`
}

// Client is a session with a single MCP endpoint. It performs the
// initialize handshake once, carries the session token the server
// issued on every later request, caches the tool catalog, and allocates
// request ids from a counter that is never reset.
type Client struct {
	endpoint  string
	transport Transport
	logger    *slog.Logger
	nextID    atomic.Int64

	// initMu serializes the handshake so it runs at most once.
	initMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	initErr     *InitializationError
	sessionID   string
	serverName  string
	serverVer   string
	tools       []ToolDescriptor
}

// NewClient creates an MCP session client for the given endpoint. The
// transport determines how messages are delivered.
func NewClient(endpoint string, transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:  endpoint,
		transport: transport,
		logger:    logger.With("mcp_endpoint", endpoint),
	}
}

// Endpoint returns the endpoint URL this client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SessionID returns the session token issued during initialize, or ""
// if the server did not issue one.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Initialized reports whether the handshake has completed.
func (c *Client) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// ServerInfo returns the server name and version reported during initialize.
func (c *Client) ServerInfo() (name, version string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName, c.serverVer
}

// Initialize performs the MCP handshake. It is a no-op once the session
// is initialized. A JSON-RPC error from the server is returned as an
// *InitializationError and leaves the session permanently unusable:
// later calls return the same error without contacting the server.
// Transport failures are not sticky. The session token is captured from
// the initialize reply only.
func (c *Client) Initialize(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.mu.RLock()
	initialized, initErr := c.initialized, c.initErr
	c.mu.RUnlock()
	if initErr != nil {
		return initErr
	}
	if initialized {
		return nil
	}

	params := map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo": map[string]any{
			"name":    buildinfo.Name,
			"version": buildinfo.Version,
		},
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"prompts":   map[string]any{},
			"resources": map[string]any{},
			"sampling":  map[string]any{},
		},
	}

	reply, err := c.send(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if reply.Response.Error != nil {
		initErr := &InitializationError{Endpoint: c.endpoint, Err: reply.Response.Error}
		c.mu.Lock()
		c.initErr = initErr
		c.mu.Unlock()
		c.logger.Warn("MCP server rejected initialize", "error", reply.Response.Error.Message)
		return initErr
	}

	var result initializeResult
	if len(reply.Response.Result) > 0 {
		if err := json.Unmarshal(reply.Response.Result, &result); err != nil {
			c.logger.Debug("ignoring malformed initialize result", "error", err)
		}
	}

	c.mu.Lock()
	c.initialized = true
	if c.sessionID == "" {
		c.sessionID = reply.SessionID
	}
	c.serverName = result.ServerInfo.Name
	c.serverVer = result.ServerInfo.Version
	c.mu.Unlock()

	c.logger.Info("MCP server initialized",
		"server_name", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol_version", result.ProtocolVersion,
		"session", reply.SessionID != "",
	)

	return nil
}

// ListTools returns the server's tool catalog, initializing the session
// first if needed. The catalog is cached; tools/list is only sent when
// forceRefresh is set or nothing is cached yet. A missing or malformed
// tools array yields an empty catalog, and individual malformed entries
// are skipped.
func (c *Client) ListTools(ctx context.Context, forceRefresh bool) ([]ToolDescriptor, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	if !forceRefresh {
		c.mu.RLock()
		cached := c.tools
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
	}

	reply, err := c.send(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	if reply.Response.Error != nil {
		return nil, fmt.Errorf("tools/list: %w", reply.Response.Error)
	}

	tools := parseToolList(reply.Response.Result, c.logger)

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()

	c.logger.Info("discovered MCP tools", "count", len(tools))
	return tools, nil
}

// CallTool invokes a tool by name with the given JSON arguments and
// returns the raw result. A JSON-RPC error is returned as a
// *RemoteToolError. Empty args are sent as an empty object.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}

	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	reply, err := c.send(ctx, "tools/call", params)
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	if rpcErr := reply.Response.Error; rpcErr != nil {
		return nil, &RemoteToolError{Tool: name, Code: rpcErr.Code, Message: rpcErr.Message}
	}

	return reply.Response.Result, nil
}

// Close shuts down the client and its transport.
func (c *Client) Close() error {
	c.logger.Debug("closing MCP client")
	return c.transport.Close()
}

// send allocates the next request id and issues the request with the
// current session token. The id is consumed whether or not the call
// succeeds.
func (c *Client) send(ctx context.Context, method string, params any) (*Reply, error) {
	id := c.nextID.Add(1)
	req := NewRequest(id, method, params)

	reply, err := c.transport.Send(ctx, c.SessionID(), req)
	if err != nil {
		return nil, err
	}
	if reply == nil || reply.Response == nil {
		return nil, &ProtocolError{Reason: ReasonNoMatch}
	}

	return reply, nil
}

// parseToolList extracts the tools array from a tools/list result.
func parseToolList(result json.RawMessage, logger *slog.Logger) []ToolDescriptor {
	tools := []ToolDescriptor{}

	var envelope struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if len(result) == 0 {
		return tools
	}
	if err := json.Unmarshal(result, &envelope); err != nil {
		logger.Warn("malformed tools/list result", "error", err)
		return tools
	}

	for i, raw := range envelope.Tools {
		var td ToolDescriptor
		if err := json.Unmarshal(raw, &td); err != nil {
			logger.Warn("skipping malformed tool descriptor", "index", i, "error", err)
			continue
		}
		tools = append(tools, td)
	}
	return tools
}

// ResultText renders a tools/call result for humans: text content blocks
// are joined with newlines and other blocks are shown as inline markers.
// Results that do not follow the content-block convention are returned
// as compact JSON.
func ResultText(result json.RawMessage) string {
	var r callToolResult
	if err := json.Unmarshal(result, &r); err != nil || r.Content == nil {
		return string(result)
	}

	var parts []string
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			parts = append(parts, b.Text)
		default:
			parts = append(parts, fmt.Sprintf("[%s]", b.Type))
		}
	}
	text := strings.Join(parts, "\n")
	if r.IsError {
		return "error: " + text
	}
	return text
}
