package mcpserver

import (
	"fmt"

	"mcphub/internal/api"
	"mcphub/internal/config"
)

// ClientFactory creates the MCPClient for a named server.
type ClientFactory func(name string, cfg config.ServerConfig) (MCPClient, error)

// NewMCPClient creates the appropriate MCP client based on the server's transport.
//
// Supported types:
//   - "stdio": launches a local subprocess
//   - "streamable-http": connects to an HTTP endpoint with streaming support
//   - "sse": connects to a Server-Sent Events endpoint
//
// Returns an error if the transport is not recognized or its required field is missing.
func NewMCPClient(name string, cfg config.ServerConfig) (MCPClient, error) {
	switch transport := cfg.Transport(); transport {
	case api.TransportStdio:
		if cfg.Command == "" {
			return nil, fmt.Errorf("command is required for stdio type")
		}
		return NewStdioClient(name, cfg), nil

	case api.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("url is required for streamable-http type")
		}
		return NewStreamableHTTPClient(name, cfg), nil

	case api.TransportSSE:
		if cfg.URL == "" {
			return nil, fmt.Errorf("url is required for sse type")
		}
		return NewSSEClient(name, cfg), nil

	default:
		return nil, fmt.Errorf("unsupported MCP server type: %q (supported: %s, %s, %s)",
			transport, api.TransportStdio, api.TransportStreamableHTTP, api.TransportSSE)
	}
}
