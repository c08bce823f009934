package mcp

import (
	"context"
	"errors"
	"fmt"
)

// TransportError reports a network failure or an HTTP status the
// client cannot accept. StatusCode is zero when no response arrived.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("MCP server %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("MCP server %s returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("HTTP request to %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying network error, if any.
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response the client could not use: an
// undecodable body, an unsupported content type, or no message whose id
// matches the outstanding request.
type ProtocolError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("MCP protocol error: %s: %v", e.Reason, e.Err)
	}
	return "MCP protocol error: " + e.Reason
}

// Unwrap returns the decode error, if any.
func (e *ProtocolError) Unwrap() error { return e.Err }

// Reasons carried by ProtocolError.
const (
	ReasonNoMatch            = "no matching response"
	ReasonStreamEnded        = "stream ended without response"
	ReasonUnsupportedContent = "unsupported content type"
	ReasonUndecodable        = "undecodable response body"
)

// InitializationError reports that the server rejected the initialize
// handshake. The session is unusable afterwards.
type InitializationError struct {
	Endpoint string
	Err      *RPCError
}

// Error implements the error interface.
func (e *InitializationError) Error() string {
	return fmt.Sprintf("MCP server %s rejected initialize: %s", e.Endpoint, e.Err.Message)
}

// Unwrap returns the JSON-RPC error object.
func (e *InitializationError) Unwrap() error { return e.Err }

// RemoteToolError is a JSON-RPC error returned for a tools/call request.
// Its Error text is the server's message so it can be shown to the model
// verbatim.
type RemoteToolError struct {
	Tool    string
	Code    int
	Message string
}

// Error implements the error interface.
func (e *RemoteToolError) Error() string {
	return e.Message
}

// CancellationError reports that the caller's context ended while a
// request was in flight. It is distinct from TransportError so the agent
// loop can tell a user abort from a failing tool.
type CancellationError struct {
	Method string
	Err    error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("MCP %s cancelled: %v", e.Method, e.Err)
}

// Unwrap returns the context error.
func (e *CancellationError) Unwrap() error { return e.Err }

// IsCancellation reports whether err is, or wraps, a CancellationError.
func IsCancellation(err error) bool {
	var ce *CancellationError
	return errors.As(err, &ce)
}

// cancelled converts err into a CancellationError when ctx is done.
// It returns nil if the context is still live.
func cancelled(ctx context.Context, method string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CancellationError{Method: method, Err: ctxErr}
	}
	return nil
}
