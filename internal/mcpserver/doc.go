// Package mcpserver manages the connection to a single managed MCP server.
//
// A Connection owns one MCPClient at a time and tracks the server's status
// (connecting, connected, disconnected, disabled, error) together with the
// capability names it advertised during the last successful handshake.
//
// # Transports
//
// Clients are created by NewMCPClient from a config.ServerConfig:
//
//   - stdio: launches Command with Args, Env and Cwd and speaks MCP over stdin/stdout.
//     The subprocess's stderr is forwarded to the debug log.
//   - streamable-http: connects to URL with optional Headers.
//   - sse: connects to a Server-Sent Events endpoint at URL with optional Headers.
//
// When Type is omitted the transport is inferred: a Command means stdio, a URL
// means streamable-http.
//
// # Lifecycle
//
// Connect dials the server unless it is disabled; a disabled server is reported
// with StatusDisabled and never dialed. Start clears the disabled flag and dials.
// Stop closes the client and optionally marks the server disabled. Disconnect
// closes the client and leaves the disabled flag alone.
//
// Lifecycle operations on one Connection are serialized; status reads do not
// wait for I/O. Tool calls and resource reads are bounded by the server's
// configured timeout.
package mcpserver
