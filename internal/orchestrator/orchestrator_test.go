package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcphub/internal/api"
	"mcphub/internal/config"
)

// memStore is an in-memory ConfigStore that records updates.
type memStore struct {
	mu        sync.Mutex
	cfg       config.HubConfig
	updates   []config.HubConfig
	updateErr error
	journal   *journal
}

func newMemStore(servers map[string]config.ServerConfig, j *journal) *memStore {
	return &memStore{cfg: config.HubConfig{MCPServers: servers}, journal: j}
}

func (s *memStore) GetConfig() config.HubConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

func (s *memStore) UpdateConfig(ctx context.Context, src config.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if src.Config == nil {
		return errors.New("memStore only accepts object sources")
	}
	s.cfg = src.Config.Clone()
	s.updates = append(s.updates, s.cfg.Clone())
	if s.journal != nil {
		s.journal.add("persist")
	}
	return nil
}

// journal records the order of interesting calls across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// fakeConn is an in-memory ServerConnection.
type fakeConn struct {
	name          string
	connectErr    error
	disconnectErr error
	delay         time.Duration
	journal       *journal

	mu          sync.Mutex
	disabled    bool
	status      api.ServerStatus
	disconnects int
}

func (c *fakeConn) Connect(ctx context.Context) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.disabled:
		c.status = api.StatusDisabled
		return nil
	case c.connectErr != nil:
		c.status = api.StatusError
		return api.NewConnectionError(c.name, "connect", c.connectErr)
	}
	c.status = api.StatusConnected
	return nil
}

func (c *fakeConn) Start(ctx context.Context) error {
	if c.journal != nil {
		c.journal.add("start")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = false
	if c.connectErr != nil {
		c.status = api.StatusError
		return c.connectErr
	}
	c.status = api.StatusConnected
	return nil
}

func (c *fakeConn) Stop(ctx context.Context, disable bool) error {
	if c.journal != nil {
		c.journal.add("stop")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if disable {
		c.disabled = true
		c.status = api.StatusDisabled
	} else {
		c.status = api.StatusDisconnected
	}
	return nil
}

func (c *fakeConn) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	if c.disabled {
		c.status = api.StatusDisabled
	} else {
		c.status = api.StatusDisconnected
	}
	return c.disconnectErr
}

func (c *fakeConn) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if name == "fail" {
		return nil, errors.New("tool failed")
	}
	return mcp.NewToolResultText(c.name + ":" + name), nil
}

func (c *fakeConn) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{mcp.TextResourceContents{URI: uri, Text: c.name}},
	}, nil
}

func (c *fakeConn) ServerInfo() api.ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := c.status
	if status == "" {
		status = api.StatusDisconnected
	}
	return api.ServerInfo{Name: c.name, Status: status, Disabled: c.disabled}
}

func (c *fakeConn) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// fakeFactory builds fakeConns and remembers every one it created.
type fakeFactory struct {
	mu            sync.Mutex
	connectErrs   map[string]error
	disconnectErr map[string]error
	delays        map[string]time.Duration
	journal       *journal
	created       map[string][]*fakeConn
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		connectErrs:   map[string]error{},
		disconnectErr: map[string]error{},
		delays:        map[string]time.Duration{},
		created:       map[string][]*fakeConn{},
	}
}

func (f *fakeFactory) New(name string, cfg config.ServerConfig) ServerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{
		name:          name,
		disabled:      cfg.Disabled,
		connectErr:    f.connectErrs[name],
		disconnectErr: f.disconnectErr[name],
		delay:         f.delays[name],
		journal:       f.journal,
	}
	f.created[name] = append(f.created[name], c)
	return c
}

func (f *fakeFactory) last(name string) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	conns := f.created[name]
	if len(conns) == 0 {
		return nil
	}
	return conns[len(conns)-1]
}

func servers(names ...string) map[string]config.ServerConfig {
	m := make(map[string]config.ServerConfig, len(names))
	for _, n := range names {
		m[n] = config.ServerConfig{Command: n + "-server"}
	}
	return m
}

func statusesByName(infos []api.ServerInfo) map[string]api.ServerStatus {
	out := make(map[string]api.ServerStatus, len(infos))
	for _, i := range infos {
		out[i.Name] = i.Status
	}
	return out
}

func TestStartConfiguredServers_PartialFailure(t *testing.T) {
	factory := newFakeFactory()
	factory.connectErrs["broken"] = errors.New("exec: not found")
	factory.delays["broken"] = 50 * time.Millisecond

	store := newMemStore(servers("alpha", "beta", "broken"), nil)
	o := New(store, WithConnectionFactory(factory.New))

	outcomes := o.StartConfiguredServers(t.Context())
	require.Len(t, outcomes, 3)

	var failed []string
	for _, out := range outcomes {
		if out.Err != nil {
			failed = append(failed, out.Name)
		}
	}
	assert.Equal(t, []string{"broken"}, failed)

	assert.Equal(t, map[string]api.ServerStatus{
		"alpha":  api.StatusConnected,
		"beta":   api.StatusConnected,
		"broken": api.StatusError,
	}, statusesByName(o.GetAllServerStatuses()))
}

func TestStartConfiguredServers_IncludesDisabled(t *testing.T) {
	factory := newFakeFactory()
	cfg := servers("on", "off")
	off := cfg["off"]
	off.Disabled = true
	cfg["off"] = off

	o := New(newMemStore(cfg, nil), WithConnectionFactory(factory.New))
	o.StartConfiguredServers(t.Context())

	info, err := o.GetServerStatus("off")
	require.NoError(t, err)
	assert.Equal(t, api.StatusDisabled, info.Status)
	assert.True(t, info.Disabled)
}

func TestStartConfiguredServers_Reconcile(t *testing.T) {
	factory := newFakeFactory()
	store := newMemStore(servers("keep", "drop"), nil)
	o := New(store, WithConnectionFactory(factory.New))
	o.StartConfiguredServers(t.Context())

	_, err := o.ConnectServer(t.Context(), "adhoc", config.ServerConfig{URL: "http://localhost/mcp"})
	require.NoError(t, err)

	firstKeep := factory.last("keep")
	drop := factory.last("drop")

	store.mu.Lock()
	store.cfg = config.HubConfig{MCPServers: servers("keep", "added")}
	store.mu.Unlock()

	o.StartConfiguredServers(t.Context())

	infos := statusesByName(o.GetAllServerStatuses())
	assert.Contains(t, infos, "keep")
	assert.Contains(t, infos, "added")
	assert.Contains(t, infos, "adhoc", "ad-hoc connections survive reconciliation")
	assert.NotContains(t, infos, "drop")

	assert.Equal(t, 1, drop.disconnectCount())
	assert.Equal(t, 1, firstKeep.disconnectCount(), "replaced connection is disconnected")
	assert.NotSame(t, firstKeep, factory.last("keep"))
}

func TestStartServer_PersistsEnableBeforeStart(t *testing.T) {
	j := &journal{}
	factory := newFakeFactory()
	factory.journal = j

	cfg := servers("svc")
	svc := cfg["svc"]
	svc.Disabled = true
	cfg["svc"] = svc
	store := newMemStore(cfg, j)

	o := New(store, WithConnectionFactory(factory.New))
	o.StartConfiguredServers(t.Context())

	info, err := o.StartServer(t.Context(), "svc")
	require.NoError(t, err)
	assert.Equal(t, api.StatusConnected, info.Status)

	assert.Equal(t, []string{"persist", "start"}, j.list())
	require.Len(t, store.updates, 1)
	assert.False(t, store.updates[0].MCPServers["svc"].Disabled)
	assert.False(t, store.GetConfig().MCPServers["svc"].Disabled)
}

func TestStartServer_AlreadyEnabledDoesNotPersist(t *testing.T) {
	factory := newFakeFactory()
	store := newMemStore(servers("svc"), nil)
	o := New(store, WithConnectionFactory(factory.New))
	o.StartConfiguredServers(t.Context())

	_, err := o.StartServer(t.Context(), "svc")
	require.NoError(t, err)
	assert.Empty(t, store.updates)
}

func TestStartServer_PersistFailureDoesNotStart(t *testing.T) {
	j := &journal{}
	factory := newFakeFactory()
	factory.journal = j

	cfg := servers("svc")
	svc := cfg["svc"]
	svc.Disabled = true
	cfg["svc"] = svc
	store := newMemStore(cfg, j)
	store.updateErr = errors.New("read-only file system")

	o := New(store, WithConnectionFactory(factory.New))
	o.StartConfiguredServers(t.Context())

	_, err := o.StartServer(t.Context(), "svc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only file system")
	assert.Empty(t, j.list())
}

func TestStopServer(t *testing.T) {
	t.Run("disable persists first", func(t *testing.T) {
		j := &journal{}
		factory := newFakeFactory()
		factory.journal = j
		store := newMemStore(servers("svc"), j)
		o := New(store, WithConnectionFactory(factory.New))
		o.StartConfiguredServers(t.Context())

		info, err := o.StopServer(t.Context(), "svc", true)
		require.NoError(t, err)
		assert.Equal(t, api.StatusDisabled, info.Status)
		assert.Equal(t, []string{"persist", "stop"}, j.list())
		assert.True(t, store.GetConfig().MCPServers["svc"].Disabled)
	})

	t.Run("without disable nothing is persisted", func(t *testing.T) {
		factory := newFakeFactory()
		store := newMemStore(servers("svc"), nil)
		o := New(store, WithConnectionFactory(factory.New))
		o.StartConfiguredServers(t.Context())

		info, err := o.StopServer(t.Context(), "svc", false)
		require.NoError(t, err)
		assert.Equal(t, api.StatusDisconnected, info.Status)
		assert.Empty(t, store.updates)
	})

	t.Run("disabled server stays listed after restart from config", func(t *testing.T) {
		factory := newFakeFactory()
		store := newMemStore(servers("svc", "other"), nil)
		o := New(store, WithConnectionFactory(factory.New))
		o.StartConfiguredServers(t.Context())

		_, err := o.StopServer(t.Context(), "svc", true)
		require.NoError(t, err)

		outcomes := o.StartConfiguredServers(t.Context())
		require.Len(t, outcomes, 2)
		for _, out := range outcomes {
			assert.NoError(t, out.Err, out.Name)
		}

		assert.Equal(t, map[string]api.ServerStatus{
			"svc":   api.StatusDisabled,
			"other": api.StatusConnected,
		}, statusesByName(o.GetAllServerStatuses()))

		info, err := o.GetServerStatus("svc")
		require.NoError(t, err)
		assert.True(t, info.Disabled)
	})
}

func TestStartStopServer_NotFound(t *testing.T) {
	factory := newFakeFactory()
	store := newMemStore(servers("configured"), nil)
	o := New(store, WithConnectionFactory(factory.New))

	// Configured but never started: no connection in the map
	_, err := o.StartServer(t.Context(), "configured")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))

	_, err = o.StartServer(t.Context(), "unknown")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.True(t, api.IsServerError(err))

	_, err = o.StopServer(t.Context(), "unknown", true)
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Empty(t, store.updates)
}

func TestConnectServer(t *testing.T) {
	factory := newFakeFactory()
	o := New(newMemStore(nil, nil), WithConnectionFactory(factory.New))

	info, err := o.ConnectServer(t.Context(), "remote", config.ServerConfig{URL: "http://a/mcp"})
	require.NoError(t, err)
	assert.Equal(t, api.StatusConnected, info.Status)
	first := factory.last("remote")

	// Replacing disconnects the previous handle
	_, err = o.ConnectServer(t.Context(), "remote", config.ServerConfig{URL: "http://b/mcp"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.disconnectCount())

	// Connect failures propagate and leave an error entry behind
	factory.connectErrs["flaky"] = errors.New("connection refused")
	info, err = o.ConnectServer(t.Context(), "flaky", config.ServerConfig{URL: "http://c/mcp"})
	require.Error(t, err)
	assert.True(t, api.IsConnectionError(err))
	assert.Equal(t, api.StatusError, info.Status)

	status, err := o.GetServerStatus("flaky")
	require.NoError(t, err)
	assert.Equal(t, api.StatusError, status.Status)
}

func TestConnectServer_FailedReplacementSupersedesPrevious(t *testing.T) {
	factory := newFakeFactory()
	o := New(newMemStore(nil, nil), WithConnectionFactory(factory.New))

	_, err := o.ConnectServer(t.Context(), "remote", config.ServerConfig{URL: "http://a/mcp"})
	require.NoError(t, err)
	working := factory.last("remote")

	factory.connectErrs["remote"] = errors.New("connection refused")
	info, err := o.ConnectServer(t.Context(), "remote", config.ServerConfig{URL: "http://b/mcp"})
	require.Error(t, err)
	assert.Equal(t, api.StatusError, info.Status)

	// The entry reflects the requested configuration, not the one that last worked
	assert.Equal(t, 1, working.disconnectCount())
	status, err := o.GetServerStatus("remote")
	require.NoError(t, err)
	assert.Equal(t, api.StatusError, status.Status)
	assert.NotSame(t, working, factory.last("remote"))
}

func TestDisconnectServer(t *testing.T) {
	factory := newFakeFactory()
	factory.disconnectErr["sticky"] = errors.New("close failed")
	o := New(newMemStore(servers("svc", "sticky"), nil), WithConnectionFactory(factory.New))
	o.StartConfiguredServers(t.Context())

	// Unknown names are a no-op
	o.DisconnectServer(t.Context(), "unknown")

	o.DisconnectServer(t.Context(), "svc")
	o.DisconnectServer(t.Context(), "sticky")

	info, err := o.GetServerStatus("svc")
	require.NoError(t, err, "disconnect keeps the entry")
	assert.Equal(t, api.StatusDisconnected, info.Status)

	_, err = o.GetServerStatus("sticky")
	require.NoError(t, err)
	assert.Equal(t, 1, factory.last("sticky").disconnectCount())
}

func TestDisconnectAll(t *testing.T) {
	factory := newFakeFactory()
	factory.disconnectErr["b"] = errors.New("close failed")
	o := New(newMemStore(servers("a", "b", "c"), nil), WithConnectionFactory(factory.New))
	o.StartConfiguredServers(t.Context())
	_, err := o.ConnectServer(t.Context(), "adhoc", config.ServerConfig{URL: "http://x/mcp"})
	require.NoError(t, err)

	o.DisconnectAll(t.Context())

	for _, name := range []string{"a", "b", "c", "adhoc"} {
		assert.Equal(t, 1, factory.last(name).disconnectCount(), name)
	}
	statuses := o.GetAllServerStatuses()
	assert.NotNil(t, statuses)
	assert.Empty(t, statuses)

	_, err = o.GetServerStatus("a")
	assert.True(t, api.IsNotFound(err))
}

func TestGetAllServerStatuses(t *testing.T) {
	o := New(newMemStore(nil, nil), WithConnectionFactory(newFakeFactory().New))
	statuses := o.GetAllServerStatuses()
	assert.NotNil(t, statuses)
	assert.Empty(t, statuses)

	o = New(newMemStore(servers("zeta", "alpha", "mid"), nil), WithConnectionFactory(newFakeFactory().New))
	o.StartConfiguredServers(t.Context())

	var names []string
	for _, s := range o.GetAllServerStatuses() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestCallTool(t *testing.T) {
	o := New(newMemStore(servers("svc"), nil), WithConnectionFactory(newFakeFactory().New))
	o.StartConfiguredServers(t.Context())

	result, err := o.CallTool(t.Context(), "svc", "echo", nil)
	require.NoError(t, err)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.Equal(t, "svc:echo", text.Text)

	_, err = o.CallTool(t.Context(), "svc", "fail", nil)
	require.EqualError(t, err, "tool failed")

	_, err = o.CallTool(t.Context(), "missing", "echo", nil)
	require.Error(t, err)
	var serverErr *api.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "missing", serverErr.Server)
	assert.Equal(t, api.OperationToolCall, serverErr.Operation)
	assert.Equal(t, "echo", serverErr.Tool)
	assert.True(t, api.IsNotFound(err))
}

func TestReadResource(t *testing.T) {
	o := New(newMemStore(servers("svc"), nil), WithConnectionFactory(newFakeFactory().New))
	o.StartConfiguredServers(t.Context())

	result, err := o.ReadResource(t.Context(), "svc", "file:///etc/hosts")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)

	_, err = o.ReadResource(t.Context(), "missing", "file:///etc/hosts")
	var serverErr *api.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, api.OperationResourceRead, serverErr.Operation)
	assert.Equal(t, "file:///etc/hosts", serverErr.URI)
}

func TestMetrics(t *testing.T) {
	factory := newFakeFactory()
	factory.connectErrs["bad"] = errors.New("boom")

	reg := prometheus.NewRegistry()
	m := NewMetrics()
	require.NoError(t, m.Register(reg))

	o := New(newMemStore(servers("good", "bad"), nil), WithConnectionFactory(factory.New), WithMetrics(m))
	o.StartConfiguredServers(t.Context())
	_, _ = o.CallTool(t.Context(), "good", "echo", nil)
	_, _ = o.CallTool(t.Context(), "nope", "echo", nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "|" + lp.GetName() + "=" + lp.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				values[key] = g.GetValue()
			}
			if c := metric.GetCounter(); c != nil {
				values[key] = c.GetValue()
			}
		}
	}

	assert.Equal(t, 1.0, values["mcphub_server_connections|status=connected"])
	assert.Equal(t, 1.0, values["mcphub_server_connections|status=error"])
	assert.Equal(t, 0.0, values["mcphub_server_connections|status=disabled"])
	assert.Equal(t, 1.0, values["mcphub_tool_calls_total|result=success|server=good"])
	assert.Equal(t, 1.0, values["mcphub_tool_calls_total|result=not_found|server=nope"])
	assert.Equal(t, 1.0, values["mcphub_orchestrator_operations_total|operation=start_configured|result=success"])
}
