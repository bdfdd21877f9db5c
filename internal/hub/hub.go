package hub

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/api"
	"mcphub/internal/config"
	"mcphub/internal/orchestrator"
	"mcphub/pkg/logging"
)

// ConfigProvider supplies the hub configuration and reports changes to it.
// config.Manager implements it.
type ConfigProvider interface {
	LoadConfig() error
	GetConfig() config.HubConfig
	UpdateConfig(ctx context.Context, src config.Source) error
	WatchConfig(ctx context.Context) error
	Subscribe() (<-chan config.HubConfig, func())
	IsFileBacked() bool
	Close() error
}

var _ ConfigProvider = (*config.Manager)(nil)

// Options configures a Hub.
type Options struct {
	// Watch reloads and reconciles when the configuration file changes.
	Watch bool
	// Orchestrator options, e.g. a connection factory or metrics.
	Orchestrator []orchestrator.Option
}

// Hub is the entry point for everything that manages servers: it composes the
// configuration provider with the orchestrator and keeps them in step.
type Hub struct {
	provider ConfigProvider
	orch     *orchestrator.Orchestrator
	watch    bool

	mu          sync.Mutex
	watching    bool
	cancelWatch context.CancelFunc
	unsubscribe func()
	loopDone    chan struct{}
	shutdown    bool
}

// New creates a hub over provider. Nothing is loaded or started until Initialize.
func New(provider ConfigProvider, opts Options) *Hub {
	return &Hub{
		provider: provider,
		orch:     orchestrator.New(provider, opts.Orchestrator...),
		watch:    opts.Watch,
	}
}

// Orchestrator returns the underlying orchestrator.
func (h *Hub) Orchestrator() *orchestrator.Orchestrator {
	return h.orch
}

// Config returns a copy of the current configuration.
func (h *Hub) Config() config.HubConfig {
	return h.provider.GetConfig()
}

// Initialize loads the configuration, starts watching it when requested, and
// starts every configured server. A ConfigurationError is returned as is; any
// other failure is a HubError with code HUB_INIT_ERROR.
func (h *Hub) Initialize(ctx context.Context) error {
	if err := h.provider.LoadConfig(); err != nil {
		if config.IsConfigurationError(err) {
			return err
		}
		return h.initError("failed to load configuration", err)
	}

	if h.watch {
		if h.provider.IsFileBacked() {
			if err := h.startWatching(); err != nil {
				return h.initError("failed to watch configuration", err)
			}
		} else {
			logging.Debug("Hub", "Configuration is not file-backed, not watching")
		}
	}

	outcomes := h.orch.StartConfiguredServers(ctx)
	logging.Info("Hub", "Hub initialized with %d servers", len(outcomes))
	return nil
}

func (h *Hub) initError(message string, err error) error {
	return api.NewHubError(api.CodeHubInit, message, map[string]interface{}{"watch": h.watch}, err)
}

// startWatching watches the configuration for the lifetime of the hub, not of the
// Initialize call, and reconciles on every change.
func (h *Hub) startWatching() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.watching {
		return nil
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := h.provider.WatchConfig(watchCtx); err != nil {
		cancel()
		return err
	}

	changes, unsubscribe := h.provider.Subscribe()
	h.cancelWatch = cancel
	h.unsubscribe = unsubscribe
	h.loopDone = make(chan struct{})
	h.watching = true

	go h.reconcileLoop(watchCtx, changes, h.loopDone)
	return nil
}

// reconcileLoop runs a full reconciliation for each configuration change. Changes
// that arrive during a reconciliation coalesce into one follow-up run.
func (h *Hub) reconcileLoop(ctx context.Context, changes <-chan config.HubConfig, done chan struct{}) {
	defer close(done)
	for cfg := range changes {
		logging.Info("Hub", "Configuration changed (%d servers), reconciling", len(cfg.MCPServers))
		h.orch.StartConfiguredServers(ctx)
	}
}

// UpdateConfig replaces the configuration from src and reconciles the servers.
// Failures are HubErrors with code CONFIG_UPDATE_ERROR.
func (h *Hub) UpdateConfig(ctx context.Context, src config.Source) error {
	if err := h.provider.UpdateConfig(ctx, src); err != nil {
		return api.NewHubError(api.CodeConfigUpdate, "failed to update configuration",
			map[string]interface{}{"source": src.Kind()}, err)
	}
	h.orch.StartConfiguredServers(ctx)
	return nil
}

// StartServer enables and starts a configured server.
func (h *Hub) StartServer(ctx context.Context, name string) (api.ServerInfo, error) {
	return h.orch.StartServer(ctx, name)
}

// StopServer stops a configured server, optionally disabling it.
func (h *Hub) StopServer(ctx context.Context, name string, disable bool) (api.ServerInfo, error) {
	return h.orch.StopServer(ctx, name, disable)
}

// ConnectServer connects an ad-hoc server.
func (h *Hub) ConnectServer(ctx context.Context, name string, cfg config.ServerConfig) (api.ServerInfo, error) {
	return h.orch.ConnectServer(ctx, name, cfg)
}

// DisconnectServer disconnects a server, keeping its entry.
func (h *Hub) DisconnectServer(ctx context.Context, name string) {
	h.orch.DisconnectServer(ctx, name)
}

// DisconnectAll disconnects every server.
func (h *Hub) DisconnectAll(ctx context.Context) {
	h.orch.DisconnectAll(ctx)
}

// GetServerStatus returns one server's status.
func (h *Hub) GetServerStatus(name string) (api.ServerInfo, error) {
	return h.orch.GetServerStatus(name)
}

// GetAllServerStatuses returns every server's status, sorted by name.
func (h *Hub) GetAllServerStatuses() []api.ServerInfo {
	return h.orch.GetAllServerStatuses()
}

// CallTool calls a tool on a server.
func (h *Hub) CallTool(ctx context.Context, server, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return h.orch.CallTool(ctx, server, tool, args)
}

// ReadResource reads a resource from a server.
func (h *Hub) ReadResource(ctx context.Context, server, uri string) (*mcp.ReadResourceResult, error) {
	return h.orch.ReadResource(ctx, server, uri)
}

// Shutdown stops reacting to configuration changes, closes the provider and
// disconnects every server. Calling it again is a no-op.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return nil
	}
	h.shutdown = true
	unsubscribe := h.unsubscribe
	cancel := h.cancelWatch
	loopDone := h.loopDone
	h.watching = false
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	if loopDone != nil {
		select {
		case <-loopDone:
		case <-ctx.Done():
			logging.Warn("Hub", "Timed out waiting for reconciliation to finish")
		}
	}

	if err := h.provider.Close(); err != nil {
		logging.Warn("Hub", "Error closing configuration provider: %v", err)
	}

	h.orch.DisconnectAll(ctx)
	logging.Info("Hub", "Hub shut down")
	return nil
}
