package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/api"
	"mcphub/pkg/logging"
)

// MCPClient defines the interface for MCP client implementations.
// Every transport (stdio, SSE, streamable-http) is served by TransportClient;
// tests substitute fakes through WithClientFactory.
type MCPClient interface {
	// Initialize establishes the connection and performs protocol handshake
	Initialize(ctx context.Context) error
	// Close cleanly shuts down the client connection
	Close() error
	// ListTools returns all available tools from the server
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	// CallTool executes a specific tool and returns the result
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	// ListResources returns all available resources from the server
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	// ReadResource retrieves a specific resource
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	// ListPrompts returns all available prompts from the server
	ListPrompts(ctx context.Context) ([]mcp.Prompt, error)
	// Ping checks if the server is responsive
	Ping(ctx context.Context) error
}

var _ MCPClient = (*TransportClient)(nil)

// ClientInfo identifies the hub to managed servers during the handshake.
var ClientInfo = mcp.Implementation{
	Name:    "mcphub",
	Version: "dev",
}

// dialFunc creates and starts the underlying mcp-go client for one transport.
// ctx stays alive until the client is closed, so transports may bind
// long-lived streams to it.
type dialFunc func(ctx context.Context) (*client.Client, error)

// TransportClient is an MCPClient over one transport. The transport-specific part
// is only how the underlying client is dialed; the protocol operations are shared.
type TransportClient struct {
	name      string
	transport api.TransportType
	target    string
	dial      dialFunc

	// afterInit runs once the handshake succeeded, e.g. to forward stderr.
	afterInit func(c *client.Client)

	mu         sync.RWMutex
	client     *client.Client
	cancel     context.CancelFunc
	connected  bool
	serverInfo mcp.Implementation
}

// Transport returns the transport this client speaks.
func (c *TransportClient) Transport() api.TransportType {
	return c.transport
}

// ServerImplementation returns the name and version the server reported, once connected.
func (c *TransportClient) ServerImplementation() mcp.Implementation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Initialize dials the server and performs the protocol handshake.
func (c *TransportClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("Connection", "Dialing %s over %s: %s", c.name, c.transport, c.target)

	// The transport outlives this call; ctx only bounds dialing and the handshake.
	lifetime, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopBinding := context.AfterFunc(ctx, cancel)
	mcpClient, err := c.dial(lifetime)
	if !stopBinding() {
		if err == nil {
			mcpClient.Close()
			err = ctx.Err()
		}
	}
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create %s client: %w", c.transport, err)
	}

	initResult, err := mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      ClientInfo,
			Capabilities:    mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		if closeErr := mcpClient.Close(); closeErr != nil {
			logging.Debug("Connection", "Error closing failed client for %s: %v", c.name, closeErr)
		}
		cancel()
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}

	c.client = mcpClient
	c.cancel = cancel
	c.connected = true
	c.serverInfo = initResult.ServerInfo

	logging.Debug("Connection", "%s initialized. Server: %s, Version: %s",
		c.name, initResult.ServerInfo.Name, initResult.ServerInfo.Version)

	if c.afterInit != nil {
		c.afterInit(mcpClient)
	}
	return nil
}

// checkConnected verifies the client is connected and returns an error if not.
// Note: Caller must hold at least a read lock on mu.
func (c *TransportClient) checkConnected() error {
	if !c.connected || c.client == nil {
		return fmt.Errorf("client not connected")
	}
	return nil
}

// Close cleanly shuts down the client connection
func (c *TransportClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil
	}

	err := c.client.Close()
	if c.cancel != nil {
		c.cancel()
	}
	c.connected = false
	c.client = nil
	c.cancel = nil
	return err
}

// ListTools returns all available tools from the server
func (c *TransportClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool executes a specific tool and returns the result
func (c *TransportClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call tool: %w", err)
	}
	return result, nil
}

// ListResources returns all available resources from the server
func (c *TransportClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	result, err := c.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return result.Resources, nil
}

// ReadResource retrieves a specific resource
func (c *TransportClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	result, err := c.client.ReadResource(ctx, mcp.ReadResourceRequest{
		Params: struct {
			URI       string         `json:"uri"`
			Arguments map[string]any `json:"arguments,omitempty"`
		}{
			URI: uri,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read resource: %w", err)
	}
	return result, nil
}

// ListPrompts returns all available prompts from the server
func (c *TransportClient) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return nil, err
	}

	result, err := c.client.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return result.Prompts, nil
}

// Ping checks if the server is responsive
func (c *TransportClient) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkConnected(); err != nil {
		return err
	}
	return c.client.Ping(ctx)
}

// listCapabilities collects the names a server advertises. Each listing is best
// effort: servers commonly implement only some of them.
func listCapabilities(ctx context.Context, name string, c MCPClient) api.CapabilitySummary {
	var caps api.CapabilitySummary

	if tools, err := c.ListTools(ctx); err == nil {
		for _, t := range tools {
			caps.Tools = append(caps.Tools, t.Name)
		}
	} else {
		logging.Debug("Connection", "%s: tools not listed: %v", name, err)
	}

	if resources, err := c.ListResources(ctx); err == nil {
		for _, r := range resources {
			caps.Resources = append(caps.Resources, r.URI)
		}
	} else {
		logging.Debug("Connection", "%s: resources not listed: %v", name, err)
	}

	if prompts, err := c.ListPrompts(ctx); err == nil {
		for _, p := range prompts {
			caps.Prompts = append(caps.Prompts, p.Name)
		}
	} else {
		logging.Debug("Connection", "%s: prompts not listed: %v", name, err)
	}

	sort.Strings(caps.Tools)
	sort.Strings(caps.Resources)
	sort.Strings(caps.Prompts)
	return caps
}
