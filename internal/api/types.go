package api

import "time"

// ServerStatus is the lifecycle status of a managed MCP server connection.
type ServerStatus string

const (
	StatusConnecting   ServerStatus = "connecting"
	StatusConnected    ServerStatus = "connected"
	StatusDisconnected ServerStatus = "disconnected"
	StatusDisabled     ServerStatus = "disabled"
	StatusError        ServerStatus = "error"
)

// IsServing reports whether a server in this status accepts tool calls.
func (s ServerStatus) IsServing() bool {
	return s == StatusConnected
}

// TransportType identifies how the hub talks to a managed server.
type TransportType string

const (
	TransportStdio          TransportType = "stdio"
	TransportSSE            TransportType = "sse"
	TransportStreamableHTTP TransportType = "streamable-http"
)

// CapabilitySummary lists what a connected server advertised during its last connect.
type CapabilitySummary struct {
	Tools     []string `json:"tools"`
	Resources []string `json:"resources"`
	Prompts   []string `json:"prompts"`
}

// ServerInfo is a point-in-time snapshot of a connection. Building it never blocks on I/O.
type ServerInfo struct {
	Name         string            `json:"name"`
	Status       ServerStatus      `json:"status"`
	Transport    TransportType     `json:"transport"`
	Disabled     bool              `json:"disabled"`
	Error        string            `json:"error,omitempty"`
	Capabilities CapabilitySummary `json:"capabilities"`
	ConnectedAt  *time.Time        `json:"connectedAt,omitempty"`
	LastAttempt  *time.Time        `json:"lastAttempt,omitempty"`
}
