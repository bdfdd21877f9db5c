// Package orchestrator manages the live set of connections to managed MCP servers.
//
// The orchestrator owns a map from server name to ServerConnection. Desired state
// comes from a ConfigStore; the orchestrator never reads configuration files itself.
//
// # Bulk start and reconciliation
//
// StartConfiguredServers creates a fresh connection for every configured server,
// disabled ones included, and connects them concurrently. Each member records its
// own outcome, so one server that fails or hangs until its timeout never prevents
// the others from starting. Configuration changes are reconciled by running the
// bulk start again; connections that earlier bulk starts created for servers no
// longer configured are disconnected and dropped. Ad-hoc connections registered
// through ConnectServer are left alone.
//
// # Targeted operations
//
//   - StartServer clears a server's disabled flag, persists it, then starts it.
//   - StopServer stops a server and, when asked to disable, persists disabled: true first.
//   - ConnectServer registers an ad-hoc server, replacing any existing entry.
//   - DisconnectServer disconnects but keeps the entry so its status stays visible.
//   - DisconnectAll disconnects everything concurrently and clears the map.
//
// Status reads are snapshots and never wait for server I/O. CallTool and
// ReadResource return a not-found api.ServerError for unknown servers and
// otherwise pass the connection's result through unchanged.
//
// # Metrics
//
// Metrics exposes operation and tool-call counters plus a per-status connection
// gauge computed at scrape time. Register them on a prometheus.Registerer to
// export them.
package orchestrator
