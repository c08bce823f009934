package mcp

import "context"

// Transport is the interface for MCP server communication. An
// implementation sends one JSON-RPC request and returns the response
// whose id matches it, along with the session header the server sent.
type Transport interface {
	// Send sends req, attaching sessionID as the Mcp-Session-Id header
	// when it is non-empty. Errors are *TransportError, *ProtocolError
	// or *CancellationError.
	Send(ctx context.Context, sessionID string, req *Request) (*Reply, error)

	// Close releases transport resources.
	Close() error
}

// Reply is the outcome of a single Send.
type Reply struct {
	// Response is the JSON-RPC message matching the request id. For a
	// 202 Accepted reply it is synthesized with a null result.
	Response *Response

	// SessionID is the Mcp-Session-Id response header, if present.
	SessionID string

	// Status is the HTTP status code.
	Status int
}
