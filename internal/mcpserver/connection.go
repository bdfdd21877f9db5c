package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/api"
	"mcphub/internal/config"
	"mcphub/pkg/logging"
	pkgstrings "mcphub/pkg/strings"
)

// Connection is the runtime handle for one named MCP server.
//
// Lifecycle operations (Connect, Start, Stop, Disconnect) are serialized. Status
// reads never wait on I/O.
type Connection struct {
	name    string
	factory ClientFactory
	now     func() time.Time

	// opMu serializes lifecycle operations
	opMu sync.Mutex

	// mu guards the fields below
	mu          sync.RWMutex
	cfg         config.ServerConfig
	status      api.ServerStatus
	lastErr     error
	client      MCPClient
	caps        api.CapabilitySummary
	connectedAt *time.Time
	lastAttempt *time.Time
}

// Option configures a Connection.
type Option func(*Connection)

// WithClientFactory replaces the client factory, which defaults to NewMCPClient.
func WithClientFactory(f ClientFactory) Option {
	return func(c *Connection) {
		c.factory = f
	}
}

// WithClock replaces the time source used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) {
		c.now = now
	}
}

// NewConnection creates a disconnected connection for name. Nothing is dialed until Connect.
func NewConnection(name string, cfg config.ServerConfig, opts ...Option) *Connection {
	c := &Connection{
		name:    name,
		cfg:     cfg.Clone(),
		factory: NewMCPClient,
		now:     time.Now,
		status:  api.StatusDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the server name.
func (c *Connection) Name() string {
	return c.name
}

// Config returns a copy of the server configuration the connection was built with.
func (c *Connection) Config() config.ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Clone()
}

// Status returns the current status.
func (c *Connection) Status() api.ServerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// ServerInfo returns a snapshot of the connection's state.
func (c *Connection) ServerInfo() api.ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := api.ServerInfo{
		Name:      c.name,
		Status:    c.status,
		Transport: c.cfg.Transport(),
		Disabled:  c.cfg.Disabled,
		Capabilities: api.CapabilitySummary{
			Tools:     append([]string(nil), c.caps.Tools...),
			Resources: append([]string(nil), c.caps.Resources...),
			Prompts:   append([]string(nil), c.caps.Prompts...),
		},
	}
	if c.lastErr != nil {
		info.Error = c.lastErr.Error()
	}
	if c.connectedAt != nil {
		t := *c.connectedAt
		info.ConnectedAt = &t
	}
	if c.lastAttempt != nil {
		t := *c.lastAttempt
		info.LastAttempt = &t
	}
	return info
}

// Connect dials the server. A disabled server is marked disabled without dialing
// so its status stays queryable.
func (c *Connection) Connect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	disabled := c.cfg.Disabled
	c.mu.RUnlock()

	if disabled {
		c.closeClient()
		c.setStatus(api.StatusDisabled, nil)
		logging.Debug("Connection", "%s is disabled, not connecting", c.name)
		return nil
	}
	return c.dial(ctx)
}

// Start enables the connection and dials it unless it is already connected.
func (c *Connection) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.cfg.Disabled = false
	connected := c.status.IsServing() && c.client != nil
	c.mu.Unlock()

	if connected {
		return nil
	}
	return c.dial(ctx)
}

// Stop closes the client. With disable the connection is marked disabled and will
// not dial on Connect until started again.
func (c *Connection) Stop(ctx context.Context, disable bool) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if disable {
		c.cfg.Disabled = true
	}
	c.mu.Unlock()

	err := c.closeClient()
	c.setIdleStatus(nil)

	if err != nil {
		return api.NewConnectionError(c.name, opDisconnect, err)
	}
	logging.Info("Connection", "Stopped %s", c.name)
	return nil
}

// Disconnect closes the client. The connection can be connected again later.
func (c *Connection) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	err := c.closeClient()
	c.setIdleStatus(nil)

	if err != nil {
		return api.NewConnectionError(c.name, opDisconnect, err)
	}
	return nil
}

// CallTool invokes a tool on the server.
func (c *Connection) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	client, timeout, err := c.activeClient(opCallTool)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := client.CallTool(ctx, name, args)
	if err != nil {
		return nil, api.NewConnectionError(c.name, opCallTool, fmt.Errorf("tool %s: %w", name, err))
	}
	if result != nil && result.IsError {
		logging.Debug("Connection", "Tool %s on %s reported an error: %s", name, c.name, summarizeContent(result.Content))
	}
	return result, nil
}

// summarizeContent joins the text items of content into a single short line.
func summarizeContent(content []mcp.Content) string {
	var text string
	for _, item := range content {
		if tc, ok := mcp.AsTextContent(item); ok {
			text += " " + tc.Text
		}
	}
	return pkgstrings.TruncateDescription(text, pkgstrings.DefaultDescriptionMaxLen)
}

// ReadResource reads a resource from the server.
func (c *Connection) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	client, timeout, err := c.activeClient(opReadResource)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := client.ReadResource(ctx, uri)
	if err != nil {
		return nil, api.NewConnectionError(c.name, opReadResource, fmt.Errorf("resource %s: %w", uri, err))
	}
	return result, nil
}

func (c *Connection) activeClient(op string) (MCPClient, time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.status.IsServing() || c.client == nil {
		return nil, 0, api.NewConnectionError(c.name, op, fmt.Errorf("server is %s", c.status))
	}
	return c.client, c.cfg.TimeoutDuration(), nil
}

// dial replaces any existing client with a fresh one. Caller must hold opMu.
func (c *Connection) dial(ctx context.Context) error {
	c.closeClient()

	now := c.now()
	c.mu.Lock()
	c.status = api.StatusConnecting
	c.lastErr = nil
	c.lastAttempt = &now
	cfg := c.cfg.Clone()
	c.mu.Unlock()

	client, err := c.factory(c.name, cfg)
	if err != nil {
		c.setStatus(api.StatusError, err)
		return api.NewConnectionError(c.name, opConnect, err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.TimeoutDuration())
	defer cancel()

	if err := client.Initialize(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logging.Debug("Connection", "Error closing failed client for %s: %v", c.name, closeErr)
		}
		c.setStatus(api.StatusError, err)
		return api.NewConnectionError(c.name, opConnect, err)
	}

	caps := listCapabilities(ctx, c.name, client)

	connectedAt := c.now()
	c.mu.Lock()
	c.client = client
	c.caps = caps
	c.status = api.StatusConnected
	c.lastErr = nil
	c.connectedAt = &connectedAt
	c.mu.Unlock()

	logging.Info("Connection", "Connected to %s (%d tools, %d resources, %d prompts)",
		c.name, len(caps.Tools), len(caps.Resources), len(caps.Prompts))
	return nil
}

// closeClient detaches and closes the current client, if any.
func (c *Connection) closeClient() error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.caps = api.CapabilitySummary{}
	c.connectedAt = nil
	c.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

func (c *Connection) setStatus(status api.ServerStatus, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.lastErr = err
}

// setIdleStatus records the status of a connection without a client.
func (c *Connection) setIdleStatus(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.Disabled {
		c.status = api.StatusDisabled
	} else {
		c.status = api.StatusDisconnected
	}
	c.lastErr = err
}
