package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"mcphub/internal/api"
	"mcphub/internal/config"
)

// NewSSEClient creates a client for a remote server using Server-Sent Events.
func NewSSEClient(name string, cfg config.ServerConfig) *TransportClient {
	return &TransportClient{
		name:      name,
		transport: api.TransportSSE,
		target:    cfg.URL,
		dial: func(ctx context.Context) (*client.Client, error) {
			var opts []transport.ClientOption
			if len(cfg.Headers) > 0 {
				opts = append(opts, transport.WithHeaders(cfg.Headers))
			}

			mcpClient, err := client.NewSSEMCPClient(cfg.URL, opts...)
			if err != nil {
				return nil, err
			}
			if err := mcpClient.Start(ctx); err != nil {
				mcpClient.Close()
				return nil, fmt.Errorf("failed to start SSE transport: %w", err)
			}
			return mcpClient, nil
		},
	}
}
