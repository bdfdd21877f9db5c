package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mcphub/internal/api"
	"mcphub/internal/config"
	"mcphub/internal/workspace"
	"mcphub/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
	// DefaultShutdownTimeout bounds how long Stop waits for in-flight requests.
	DefaultShutdownTimeout = 5 * time.Second
)

// Hub is the part of the hub facade the control server exposes.
type Hub interface {
	GetAllServerStatuses() []api.ServerInfo
	GetServerStatus(name string) (api.ServerInfo, error)
	StartServer(ctx context.Context, name string) (api.ServerInfo, error)
	StopServer(ctx context.Context, name string, disable bool) (api.ServerInfo, error)
	ConnectServer(ctx context.Context, name string, cfg config.ServerConfig) (api.ServerInfo, error)
	DisconnectServer(ctx context.Context, name string)
	CallTool(ctx context.Context, server, tool string, args map[string]interface{}) (*mcp.CallToolResult, error)
	ReadResource(ctx context.Context, server, uri string) (*mcp.ReadResourceResult, error)
}

// WorkspaceLister lists the hubs running on this machine.
type WorkspaceLister interface {
	GetActiveWorkspaces() workspace.Table
}

// Options configures a ControlServer.
type Options struct {
	Host    string
	Port    int
	Version string
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// ControlServer exposes the hub as MCP tools over streamable HTTP at /mcp,
// with /health and /metrics alongside.
type ControlServer struct {
	hub        Hub
	workspaces WorkspaceLister
	opts       Options

	mcpServer  *mcpsrv.MCPServer
	streamable *mcpsrv.StreamableHTTPServer

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	serveDone  chan struct{}
}

// New creates a control server. workspaces may be nil, in which case
// hub_list_workspaces reports an empty table.
func New(hub Hub, workspaces WorkspaceLister, opts Options) *ControlServer {
	if opts.Host == "" {
		opts.Host = config.DefaultHost
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &ControlServer{
		hub:        hub,
		workspaces: workspaces,
		opts:       opts,
		mcpServer: mcpsrv.NewMCPServer(
			"mcphub",
			opts.Version,
			mcpsrv.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	s.streamable = mcpsrv.NewStreamableHTTPServer(s.mcpServer)
	return s
}

// MCPServer returns the underlying MCP server.
func (s *ControlServer) MCPServer() *mcpsrv.MCPServer {
	return s.mcpServer
}

// Handler returns the HTTP handler serving /mcp, /health and /metrics.
func (s *ControlServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/mcp", s.streamable)

	return mux
}

// Start listens on the configured address and serves in the background. Port 0
// picks a free port; Port reports the one in use.
func (s *ControlServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return fmt.Errorf("control server already started")
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("ControlServer", err, "Control server error")
		}
	}()

	s.httpServer = httpServer
	s.listener = listener
	s.serveDone = done

	logging.Info("ControlServer", "Serving MCP control endpoint on http://%s/mcp", listener.Addr())
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *ControlServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the listening port, or 0 before Start.
func (s *ControlServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return 0
	}
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Stop shuts the HTTP server down, waiting up to DefaultShutdownTimeout for
// in-flight requests. Stopping a server that is not running is a no-op.
func (s *ControlServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	done := s.serveDone
	s.httpServer = nil
	s.listener = nil
	s.serveDone = nil
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}

	logging.Info("ControlServer", "Stopping control server")

	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	<-done
	if err != nil {
		return fmt.Errorf("failed to shut down control server: %w", err)
	}
	return nil
}
