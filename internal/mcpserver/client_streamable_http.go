package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"mcphub/internal/api"
	"mcphub/internal/config"
)

// NewStreamableHTTPClient creates a client for a remote server using the
// streamable-http transport.
func NewStreamableHTTPClient(name string, cfg config.ServerConfig) *TransportClient {
	return &TransportClient{
		name:      name,
		transport: api.TransportStreamableHTTP,
		target:    cfg.URL,
		dial: func(ctx context.Context) (*client.Client, error) {
			var opts []transport.StreamableHTTPCOption
			if len(cfg.Headers) > 0 {
				opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
			}
			return client.NewStreamableHttpClient(cfg.URL, opts...)
		},
	}
}
