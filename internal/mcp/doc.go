// Package mcp implements the client side of the Model Context Protocol
// over the Streamable HTTP transport.
//
// Every JSON-RPC 2.0 request is an HTTP POST. The server may answer with
// a single application/json body (one message or a batch), with a
// text/event-stream whose events carry JSON-RPC messages, or with
// 202 Accepted and no body. [HTTPTransport] handles all three and
// returns the one message whose id matches the request; unrelated frames
// on the stream are skipped.
//
// [Client] owns one endpoint: it performs the initialize handshake once,
// echoes the Mcp-Session-Id token the server issued on every later
// request, caches the tools/list catalog, and invokes tools via
// tools/call. Failures are reported as typed errors ([TransportError],
// [ProtocolError], [InitializationError], [RemoteToolError],
// [CancellationError]) so callers can tell them apart with errors.As.
//
// This implementation covers the client/host side only; it never acts
// as an MCP server.
package mcp
