package hub

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphub/internal/api"
	"mcphub/internal/config"
	"mcphub/internal/orchestrator"
)

// stubConn connects unless its command is "fail".
type stubConn struct {
	name string
	cfg  config.ServerConfig

	mu     sync.Mutex
	status api.ServerStatus
}

func (c *stubConn) set(s api.ServerStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

func (c *stubConn) Connect(ctx context.Context) error {
	switch {
	case c.cfg.Disabled:
		c.set(api.StatusDisabled)
	case c.cfg.Command == "fail":
		c.set(api.StatusError)
		return errors.New("cannot start")
	default:
		c.set(api.StatusConnected)
	}
	return nil
}

func (c *stubConn) Start(ctx context.Context) error {
	c.cfg.Disabled = false
	c.set(api.StatusConnected)
	return nil
}

func (c *stubConn) Stop(ctx context.Context, disable bool) error {
	if disable {
		c.set(api.StatusDisabled)
	} else {
		c.set(api.StatusDisconnected)
	}
	return nil
}

func (c *stubConn) Disconnect(ctx context.Context) error {
	c.set(api.StatusDisconnected)
	return nil
}

func (c *stubConn) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(c.name + "/" + name), nil
}

func (c *stubConn) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{}, nil
}

func (c *stubConn) ServerInfo() api.ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return api.ServerInfo{Name: c.name, Status: c.status, Disabled: c.cfg.Disabled}
}

func stubFactory(name string, cfg config.ServerConfig) orchestrator.ServerConnection {
	return &stubConn{name: name, cfg: cfg, status: api.StatusDisconnected}
}

func hubOptions(watch bool) Options {
	return Options{
		Watch:        watch,
		Orchestrator: []orchestrator.Option{orchestrator.WithConnectionFactory(stubFactory)},
	}
}

func writeConfig(t *testing.T, path string, servers map[string]config.ServerConfig) {
	t.Helper()
	require.NoError(t, config.WriteFile(path, config.HubConfig{MCPServers: servers}))
}

func serverNames(h *Hub) []string {
	var names []string
	for _, s := range h.GetAllServerStatuses() {
		names = append(names, s.Name)
	}
	return names
}

// failingProvider wraps a Manager and fails chosen operations.
type failingProvider struct {
	*config.Manager
	loadErr  error
	watchErr error
}

func (p *failingProvider) LoadConfig() error {
	if p.loadErr != nil {
		return p.loadErr
	}
	return p.Manager.LoadConfig()
}

func (p *failingProvider) WatchConfig(ctx context.Context) error {
	if p.watchErr != nil {
		return p.watchErr
	}
	return p.Manager.WatchConfig(ctx)
}

func TestInitialize_StartsConfiguredServers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	writeConfig(t, path, map[string]config.ServerConfig{
		"ok":     {Command: "server"},
		"broken": {Command: "fail"},
		"off":    {Command: "server", Disabled: true},
	})

	h := New(config.NewManager(path), hubOptions(false))
	require.NoError(t, h.Initialize(t.Context()))
	defer h.Shutdown(context.Background())

	statuses := map[string]api.ServerStatus{}
	for _, s := range h.GetAllServerStatuses() {
		statuses[s.Name] = s.Status
	}
	assert.Equal(t, map[string]api.ServerStatus{
		"broken": api.StatusError,
		"off":    api.StatusDisabled,
		"ok":     api.StatusConnected,
	}, statuses)
}

func TestInitialize_ConfigurationErrorIsNotWrapped(t *testing.T) {
	h := New(config.NewManager(filepath.Join(t.TempDir(), "missing.json")), hubOptions(true))

	err := h.Initialize(t.Context())
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
	assert.False(t, api.IsHubError(err))
}

func TestInitialize_OtherFailuresAreHubErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	writeConfig(t, path, map[string]config.ServerConfig{"a": {Command: "server"}})

	t.Run("load", func(t *testing.T) {
		p := &failingProvider{Manager: config.NewManager(path), loadErr: errors.New("permission denied")}
		err := New(p, hubOptions(true)).Initialize(t.Context())

		var hubErr *api.HubError
		require.ErrorAs(t, err, &hubErr)
		assert.Equal(t, api.CodeHubInit, hubErr.Code)
		assert.Equal(t, true, hubErr.Fields["watch"])
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("watch", func(t *testing.T) {
		p := &failingProvider{Manager: config.NewManager(path), watchErr: errors.New("too many open files")}
		err := New(p, hubOptions(true)).Initialize(t.Context())
		assert.Equal(t, api.CodeHubInit, api.HubErrorCode(err))
	})
}

func TestInitialize_InMemoryWithWatch(t *testing.T) {
	m := config.NewManagerFromObject(config.HubConfig{MCPServers: map[string]config.ServerConfig{
		"a": {Command: "server"},
	}})
	h := New(m, hubOptions(true))
	require.NoError(t, h.Initialize(t.Context()))
	defer h.Shutdown(context.Background())

	assert.Equal(t, []string{"a"}, serverNames(h))
}

func TestWatch_ReconcilesOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	writeConfig(t, path, map[string]config.ServerConfig{"first": {Command: "server"}})

	m := config.NewManager(path)
	m.SetDebounce(20 * time.Millisecond)
	h := New(m, hubOptions(true))
	require.NoError(t, h.Initialize(t.Context()))
	defer h.Shutdown(context.Background())

	writeConfig(t, path, map[string]config.ServerConfig{
		"first":  {Command: "server"},
		"second": {Command: "server"},
	})

	require.Eventually(t, func() bool {
		names := serverNames(h)
		return len(names) == 2 && names[1] == "second"
	}, 5*time.Second, 20*time.Millisecond)

	writeConfig(t, path, map[string]config.ServerConfig{"second": {Command: "server"}})

	require.Eventually(t, func() bool {
		names := serverNames(h)
		return len(names) == 1 && names[0] == "second"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestUpdateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	writeConfig(t, path, map[string]config.ServerConfig{"a": {Command: "server"}})

	h := New(config.NewManager(path), hubOptions(false))
	require.NoError(t, h.Initialize(t.Context()))
	defer h.Shutdown(context.Background())

	next := h.Config()
	next.MCPServers["b"] = config.ServerConfig{URL: "http://localhost:9/mcp"}
	require.NoError(t, h.UpdateConfig(t.Context(), config.FromObject(next)))
	assert.Equal(t, []string{"a", "b"}, serverNames(h))

	// The update was persisted to the backing file
	onDisk, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Contains(t, onDisk.MCPServers, "b")

	t.Run("invalid object", func(t *testing.T) {
		bad := config.HubConfig{MCPServers: map[string]config.ServerConfig{"x": {}}}
		err := h.UpdateConfig(t.Context(), config.FromObject(bad))

		var hubErr *api.HubError
		require.ErrorAs(t, err, &hubErr)
		assert.Equal(t, api.CodeConfigUpdate, hubErr.Code)
		assert.Equal(t, "object", hubErr.Fields["source"])
		assert.True(t, config.IsConfigurationError(err))
	})

	t.Run("missing path", func(t *testing.T) {
		err := h.UpdateConfig(t.Context(), config.FromPath(filepath.Join(t.TempDir(), "nope.json")))

		var hubErr *api.HubError
		require.ErrorAs(t, err, &hubErr)
		assert.Equal(t, "path", hubErr.Fields["source"])
	})

	t.Run("new path", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "other.yaml")
		writeConfig(t, other, map[string]config.ServerConfig{"c": {Command: "server"}})

		require.NoError(t, h.UpdateConfig(t.Context(), config.FromPath(other)))
		assert.Equal(t, []string{"c"}, serverNames(h))
	})
}

func TestStartStopPersistThroughProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	writeConfig(t, path, map[string]config.ServerConfig{"svc": {Command: "server", Disabled: true}})

	h := New(config.NewManager(path), hubOptions(false))
	require.NoError(t, h.Initialize(t.Context()))
	defer h.Shutdown(context.Background())

	info, err := h.StartServer(t.Context(), "svc")
	require.NoError(t, err)
	assert.Equal(t, api.StatusConnected, info.Status)

	onDisk, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.False(t, onDisk.MCPServers["svc"].Disabled)

	info, err = h.StopServer(t.Context(), "svc", true)
	require.NoError(t, err)
	assert.Equal(t, api.StatusDisabled, info.Status)

	onDisk, err = config.LoadFile(path)
	require.NoError(t, err)
	assert.True(t, onDisk.MCPServers["svc"].Disabled)
}

func TestPassThroughs(t *testing.T) {
	h := New(config.NewManagerFromObject(config.HubConfig{}), hubOptions(false))
	require.NoError(t, h.Initialize(t.Context()))

	_, err := h.ConnectServer(t.Context(), "adhoc", config.ServerConfig{URL: "http://localhost:1/mcp"})
	require.NoError(t, err)

	result, err := h.CallTool(t.Context(), "adhoc", "ping", nil)
	require.NoError(t, err)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "adhoc/ping", text.Text)

	_, err = h.ReadResource(t.Context(), "adhoc", "res://x")
	require.NoError(t, err)

	_, err = h.CallTool(t.Context(), "ghost", "ping", nil)
	assert.True(t, api.IsServerError(err))

	h.DisconnectServer(t.Context(), "adhoc")
	info, err := h.GetServerStatus("adhoc")
	require.NoError(t, err)
	assert.Equal(t, api.StatusDisconnected, info.Status)

	h.DisconnectAll(t.Context())
	assert.Empty(t, h.GetAllServerStatuses())
}

func TestShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.json")
	writeConfig(t, path, map[string]config.ServerConfig{"a": {Command: "server"}})

	m := config.NewManager(path)
	m.SetDebounce(20 * time.Millisecond)
	h := New(m, hubOptions(true))
	require.NoError(t, h.Initialize(t.Context()))

	require.NoError(t, h.Shutdown(t.Context()))
	require.NoError(t, h.Shutdown(t.Context()))
	assert.Empty(t, h.GetAllServerStatuses())

	// Changes after shutdown are not reconciled
	writeConfig(t, path, map[string]config.ServerConfig{"b": {Command: "server"}})
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, h.GetAllServerStatuses())
}
