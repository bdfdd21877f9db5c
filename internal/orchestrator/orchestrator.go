package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"mcphub/internal/api"
	"mcphub/internal/config"
	"mcphub/internal/mcpserver"
	"mcphub/pkg/logging"
)

// ServerConnection is the handle the orchestrator keeps for each named server.
type ServerConnection interface {
	Connect(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context, disable bool) error
	Disconnect(ctx context.Context) error
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	ServerInfo() api.ServerInfo
}

var _ ServerConnection = (*mcpserver.Connection)(nil)

// ConfigStore is the part of the configuration provider the orchestrator needs:
// the current desired state and a way to persist enable/disable flips.
type ConfigStore interface {
	GetConfig() config.HubConfig
	UpdateConfig(ctx context.Context, src config.Source) error
}

// ConnectionFactory creates the handle for a named server.
type ConnectionFactory func(name string, cfg config.ServerConfig) ServerConnection

// DefaultConnectionFactory creates mcpserver connections.
func DefaultConnectionFactory(name string, cfg config.ServerConfig) ServerConnection {
	return mcpserver.NewConnection(name, cfg)
}

// StartOutcome is the settled result of one member of a bulk start.
type StartOutcome struct {
	Name   string
	Status api.ServerStatus
	Err    error
}

// Orchestrator owns the live set of server connections.
type Orchestrator struct {
	store   ConfigStore
	factory ConnectionFactory
	metrics *Metrics

	// reconcileMu serializes bulk starts so two reconciliations never interleave
	reconcileMu sync.Mutex

	mu          sync.RWMutex
	connections map[string]ServerConnection
	// configured holds the names the last bulk start created from configuration
	configured map[string]bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConnectionFactory replaces DefaultConnectionFactory.
func WithConnectionFactory(f ConnectionFactory) Option {
	return func(o *Orchestrator) {
		o.factory = f
	}
}

// WithMetrics records operations into m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an orchestrator reading desired state from store.
func New(store ConfigStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		factory:     DefaultConnectionFactory,
		connections: make(map[string]ServerConnection),
		configured:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	o.metrics.track(o)
	return o
}

// StartConfiguredServers creates a connection for every configured server, disabled
// ones included, and connects them concurrently. A failing server never affects the
// others: each outcome is collected and failures are logged. Servers created by an
// earlier bulk start that are no longer configured are disconnected and dropped.
func (o *Orchestrator) StartConfiguredServers(ctx context.Context) []StartOutcome {
	o.reconcileMu.Lock()
	defer o.reconcileMu.Unlock()

	cfg := o.store.GetConfig()
	names := cfg.ServerNames()

	o.pruneUnconfigured(ctx, cfg)

	logging.Info("Orchestrator", "Starting %d configured servers", len(names))

	outcomes := make([]StartOutcome, len(names))
	var g errgroup.Group
	for i, name := range names {
		serverCfg := cfg.MCPServers[name]
		g.Go(func() error {
			conn, err := o.replaceAndConnect(ctx, name, serverCfg)
			outcomes[i] = StartOutcome{Name: name, Status: conn.ServerInfo().Status, Err: err}
			// Members record their own outcome so one failure never cancels the rest
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	o.configured = make(map[string]bool, len(names))
	for _, name := range names {
		o.configured[name] = true
	}
	o.mu.Unlock()

	var failed int
	for _, out := range outcomes {
		if out.Err != nil {
			failed++
			logging.Error("Orchestrator", out.Err, "Failed to start server %s", out.Name)
		}
	}
	o.metrics.observe(opStartConfigured, nil)
	logging.Info("Orchestrator", "Started configured servers (%d ok, %d failed)", len(names)-failed, failed)
	return outcomes
}

// pruneUnconfigured removes the connections a previous bulk start created for
// servers that have since left the configuration. Ad-hoc connections stay.
func (o *Orchestrator) pruneUnconfigured(ctx context.Context, cfg config.HubConfig) {
	o.mu.Lock()
	var removed []ServerConnection
	var removedNames []string
	for name := range o.configured {
		if _, still := cfg.MCPServers[name]; still {
			continue
		}
		if conn, ok := o.connections[name]; ok {
			removed = append(removed, conn)
			removedNames = append(removedNames, name)
			delete(o.connections, name)
		}
		delete(o.configured, name)
	}
	o.mu.Unlock()

	for i, conn := range removed {
		if err := conn.Disconnect(ctx); err != nil {
			logging.Warn("Orchestrator", "Error disconnecting removed server %s: %v", removedNames[i], err)
		}
		logging.Info("Orchestrator", "Removed server %s (no longer configured)", removedNames[i])
	}
}

// replaceAndConnect installs a new connection for name and connects it. The
// previous connection, if any, is disconnected once the new attempt has settled,
// even when that attempt failed: the entry always reflects the configuration
// that was asked for, with the failure recorded in its status.
func (o *Orchestrator) replaceAndConnect(ctx context.Context, name string, cfg config.ServerConfig) (ServerConnection, error) {
	conn := o.factory(name, cfg)
	err := conn.Connect(ctx)

	o.mu.Lock()
	previous := o.connections[name]
	o.connections[name] = conn
	o.mu.Unlock()

	if previous != nil && previous != conn {
		if dErr := previous.Disconnect(ctx); dErr != nil {
			logging.Warn("Orchestrator", "Error disconnecting replaced connection for %s: %v", name, dErr)
		}
	}
	return conn, err
}

func (o *Orchestrator) get(name string) (ServerConnection, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	conn, ok := o.connections[name]
	return conn, ok
}

// StartServer enables and starts a configured server. If its configuration says
// disabled, the flag is cleared and persisted before the connection is started.
func (o *Orchestrator) StartServer(ctx context.Context, name string) (api.ServerInfo, error) {
	conn, err := o.lookupConfigured(name, api.OperationStart)
	if err != nil {
		o.metrics.observe(opStart, err)
		return api.ServerInfo{}, err
	}

	if err := o.persistDisabled(ctx, name, false); err != nil {
		o.metrics.observe(opStart, err)
		return api.ServerInfo{}, err
	}

	err = conn.Start(ctx)
	o.metrics.observe(opStart, err)
	if err != nil {
		return conn.ServerInfo(), err
	}
	logging.Info("Orchestrator", "Started server %s", name)
	return conn.ServerInfo(), nil
}

// StopServer stops a configured server. With disable, disabled: true is persisted
// before the connection is stopped.
func (o *Orchestrator) StopServer(ctx context.Context, name string, disable bool) (api.ServerInfo, error) {
	conn, err := o.lookupConfigured(name, api.OperationStop)
	if err != nil {
		o.metrics.observe(opStop, err)
		return api.ServerInfo{}, err
	}

	if disable {
		if err := o.persistDisabled(ctx, name, true); err != nil {
			o.metrics.observe(opStop, err)
			return api.ServerInfo{}, err
		}
	}

	err = conn.Stop(ctx, disable)
	o.metrics.observe(opStop, err)
	if err != nil {
		return conn.ServerInfo(), err
	}
	logging.Info("Orchestrator", "Stopped server %s (disable=%t)", name, disable)
	return conn.ServerInfo(), nil
}

// lookupConfigured returns the connection for a server that is both configured
// and present in the map.
func (o *Orchestrator) lookupConfigured(name, operation string) (ServerConnection, error) {
	cfg := o.store.GetConfig()
	if _, ok := cfg.MCPServers[name]; !ok {
		return nil, api.NewServerConfigNotFoundError(name, operation)
	}
	conn, ok := o.get(name)
	if !ok {
		return nil, api.NewServerNotFoundError(name, operation)
	}
	return conn, nil
}

// persistDisabled writes the server's disabled flag through the config store when
// it differs from the desired value.
func (o *Orchestrator) persistDisabled(ctx context.Context, name string, disabled bool) error {
	cfg := o.store.GetConfig()
	entry, ok := cfg.MCPServers[name]
	if !ok {
		return api.NewServerConfigNotFoundError(name, api.OperationStart)
	}
	if entry.Disabled == disabled {
		return nil
	}

	entry.Disabled = disabled
	cfg.MCPServers[name] = entry
	if err := o.store.UpdateConfig(ctx, config.FromObject(cfg)); err != nil {
		return fmt.Errorf("failed to persist disabled=%t for %s: %w", disabled, name, err)
	}
	logging.Debug("Orchestrator", "Persisted disabled=%t for %s", disabled, name)
	return nil
}

// ConnectServer registers an ad-hoc connection, replacing any existing one, and
// connects it. The entry stays in the map even when connecting fails.
func (o *Orchestrator) ConnectServer(ctx context.Context, name string, cfg config.ServerConfig) (api.ServerInfo, error) {
	conn, err := o.replaceAndConnect(ctx, name, cfg)
	o.metrics.observe(opConnect, err)
	if err != nil {
		return conn.ServerInfo(), err
	}
	logging.Info("Orchestrator", "Connected server %s", name)
	return conn.ServerInfo(), nil
}

// DisconnectServer disconnects a server. Unknown names are ignored and disconnect
// errors are logged. The entry stays in the map.
func (o *Orchestrator) DisconnectServer(ctx context.Context, name string) {
	conn, ok := o.get(name)
	if !ok {
		logging.Debug("Orchestrator", "Disconnect of unknown server %s ignored", name)
		return
	}
	err := conn.Disconnect(ctx)
	o.metrics.observe(opDisconnect, err)
	if err != nil {
		logging.Warn("Orchestrator", "Error disconnecting %s: %v", name, err)
		return
	}
	logging.Debug("Orchestrator", "Disconnected %s", name)
}

// DisconnectAll disconnects every server concurrently and then clears the map.
func (o *Orchestrator) DisconnectAll(ctx context.Context) {
	o.mu.RLock()
	names := make([]string, 0, len(o.connections))
	for name := range o.connections {
		names = append(names, name)
	}
	o.mu.RUnlock()

	var g errgroup.Group
	for _, name := range names {
		g.Go(func() error {
			o.DisconnectServer(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	o.connections = make(map[string]ServerConnection)
	o.configured = make(map[string]bool)
	o.mu.Unlock()

	logging.Info("Orchestrator", "Disconnected all servers (%d)", len(names))
}

// GetServerStatus returns a snapshot of one server.
func (o *Orchestrator) GetServerStatus(name string) (api.ServerInfo, error) {
	conn, ok := o.get(name)
	if !ok {
		return api.ServerInfo{}, api.NewServerNotFoundError(name, api.OperationStatus)
	}
	return conn.ServerInfo(), nil
}

// GetAllServerStatuses returns snapshots of every server, sorted by name.
func (o *Orchestrator) GetAllServerStatuses() []api.ServerInfo {
	o.mu.RLock()
	conns := make([]ServerConnection, 0, len(o.connections))
	for _, conn := range o.connections {
		conns = append(conns, conn)
	}
	o.mu.RUnlock()

	infos := make([]api.ServerInfo, 0, len(conns))
	for _, conn := range conns {
		infos = append(infos, conn.ServerInfo())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// CallTool routes a tool call to the named server and returns exactly what the
// server's connection returns.
func (o *Orchestrator) CallTool(ctx context.Context, server, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	conn, ok := o.get(server)
	if !ok {
		err := api.NewServerNotFoundError(server, api.OperationToolCall)
		err.Tool = tool
		o.metrics.observeToolCall(server, err)
		return nil, err
	}
	result, err := conn.CallTool(ctx, tool, args)
	o.metrics.observeToolCall(server, err)
	return result, err
}

// ReadResource routes a resource read to the named server.
func (o *Orchestrator) ReadResource(ctx context.Context, server, uri string) (*mcp.ReadResourceResult, error) {
	conn, ok := o.get(server)
	if !ok {
		err := api.NewServerNotFoundError(server, api.OperationResourceRead)
		err.URI = uri
		o.metrics.observe(opReadResource, err)
		return nil, err
	}
	result, err := conn.ReadResource(ctx, uri)
	o.metrics.observe(opReadResource, err)
	return result, err
}
