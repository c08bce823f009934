// Package catalog turns the tool catalogs of several remote MCP servers
// into one flat set of uniquely named, callable tools for the agent's
// function-calling loop.
//
// A [Materializer] takes the configured endpoints, opens one session per
// endpoint (in parallel), lists each server's tools and synthesizes a
// [Tool] for every remote tool under a key of the form
// mcp__<label>__<tool>. Endpoints are isolated from one another: an
// endpoint that cannot be reached or rejects the handshake contributes
// no tools and is logged, and the rest of the catalog is still built.
// Tool failures surface only when that tool is invoked, as a [Result]
// with Success false.
//
// Materialized tool sets are kept in a [Cache] keyed by endpoint URL so
// repeated materialization does not repeat the handshake. The cache is an
// explicit object owned by the caller, created once at startup.
package catalog
