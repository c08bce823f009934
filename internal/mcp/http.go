package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nugget/thane-mcpbridge/internal/httpkit"
)

// levelTrace matches config.LevelTrace; wire payloads are logged at it.
const levelTrace = slog.Level(-8)

// SessionHeader carries the server-issued session token.
const SessionHeader = "Mcp-Session-Id"

const (
	// maxBodySize bounds a single application/json response body and
	// a single SSE event.
	maxBodySize = 10 << 20

	// maxErrorBody bounds the body excerpt kept for non-2xx replies.
	maxErrorBody = 4 << 10
)

// HTTPConfig configures an HTTP MCP transport that communicates with a
// remote MCP server over the Streamable HTTP transport.
type HTTPConfig struct {
	// URL is the MCP server endpoint.
	URL string

	// Headers are additional HTTP headers sent with every request
	// (e.g., Authorization).
	Headers map[string]string

	// HTTPClient overrides the client built by httpkit. Optional. Headers
	// are not applied to a caller-supplied client.
	HTTPClient *http.Client

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// HTTPTransport communicates with an MCP server over Streamable HTTP.
// Each JSON-RPC request is sent as an HTTP POST; the response comes back
// either as a single JSON body or as an event stream carrying JSON-RPC
// messages, and the message whose id matches the request is returned.
// HTTPTransport holds no session state: the session token is passed in
// on every Send by the owning Client.
type HTTPTransport struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPTransport creates an HTTP transport for the given config.
// Unless cfg.HTTPClient is set, the underlying HTTP client is
// constructed via httpkit with no overall timeout; requests are bounded
// by the caller's context only.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithHeaders(cfg.Headers),
			httpkit.WithLogger(logger),
		)
	}

	return &HTTPTransport{
		url:        cfg.URL,
		httpClient: client,
		logger:     logger,
	}
}

// Send sends a JSON-RPC request via HTTP POST and returns the matching
// response.
func (t *HTTPTransport) Send(ctx context.Context, sessionID string, req *Request) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		httpReq.Header.Set(SessionHeader, sessionID)
	}

	t.logger.Log(ctx, levelTrace, "MCP request payload",
		"method", req.Method,
		"id", req.ID.String(),
		"json", string(body),
	)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if cerr := cancelled(ctx, req.Method); cerr != nil {
			return nil, cerr
		}
		return nil, &TransportError{Endpoint: t.url, Err: err}
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	reply := &Reply{
		SessionID: httpResp.Header.Get(SessionHeader),
		Status:    httpResp.StatusCode,
	}

	if httpResp.StatusCode == http.StatusAccepted {
		// Accepted with no body: nothing to decode, null result.
		reply.Response = &Response{
			JSONRPC: jsonrpcVersion,
			ID:      &req.ID,
			Result:  json.RawMessage("null"),
		}
		return reply, nil
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &TransportError{
			Endpoint:   t.url,
			StatusCode: httpResp.StatusCode,
			Body:       httpkit.ReadErrorBody(httpResp.Body, maxErrorBody),
		}
	}

	contentType := httpResp.Header.Get("Content-Type")
	switch mediaType(contentType) {
	case "application/json":
		reply.Response, err = t.readJSON(ctx, httpResp.Body, req)
	case "text/event-stream":
		reply.Response, err = t.readStream(ctx, httpResp.Body, req)
	default:
		return nil, &ProtocolError{
			Reason: ReasonUnsupportedContent,
			Err:    fmt.Errorf("content type %q", contentType),
		}
	}
	if err != nil {
		return nil, err
	}

	return reply, nil
}

// readJSON decodes a single JSON body holding one message or a batch.
func (t *HTTPTransport) readJSON(ctx context.Context, body io.Reader, req *Request) (*Response, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		if cerr := cancelled(ctx, req.Method); cerr != nil {
			return nil, cerr
		}
		return nil, &TransportError{Endpoint: t.url, Err: fmt.Errorf("read response body: %w", err)}
	}

	t.logger.Log(ctx, levelTrace, "MCP response payload",
		"method", req.Method,
		"id", req.ID.String(),
		"json", string(data),
	)

	msgs, err := decodeMessages(data)
	if err != nil {
		return nil, &ProtocolError{Reason: ReasonUndecodable, Err: err}
	}

	resp, ok := findResponse(msgs, req.ID)
	if !ok {
		return nil, &ProtocolError{Reason: ReasonNoMatch}
	}
	return resp, nil
}

// Close is a no-op for HTTP transports. The underlying HTTP client
// manages its own connection pool via httpkit.
func (t *HTTPTransport) Close() error {
	return nil
}

// mediaType classifies a Content-Type header by substring, so parameters
// and vendor decorations around the two supported types are tolerated.
func mediaType(contentType string) string {
	lower := strings.ToLower(contentType)
	switch {
	case strings.Contains(lower, "application/json"):
		return "application/json"
	case strings.Contains(lower, "text/event-stream"):
		return "text/event-stream"
	}
	return lower
}
