// Package server exposes a running hub to MCP clients.
//
// The ControlServer is itself an MCP server, built with mcp-go and served over
// streamable HTTP at /mcp. Its tools operate on the hub:
//
//	hub_list_servers       status and capabilities of every managed server
//	hub_server_status      status of one server
//	hub_start_server       enable and start a configured server
//	hub_stop_server        stop a server, optionally disabling it
//	hub_connect_server     connect an ad-hoc server from a config object
//	hub_disconnect_server  disconnect a server
//	hub_call_tool          call a tool on a managed server
//	hub_read_resource      read a resource from a managed server
//	hub_list_workspaces    hubs running on this machine, by workspace
//
// Failures are reported as tool results with IsError set, never as protocol
// errors. hub_call_tool returns the managed server's result unchanged.
//
// The same listener serves /health, a static liveness probe, and /metrics, the
// Prometheus exposition of the configured gatherer.
package server
