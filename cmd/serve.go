package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mcphub/internal/app"
	"mcphub/internal/config"
	"mcphub/pkg/logging"
)

// serveOptions holds the flags of the serve command.
type serveOptions struct {
	configPath string
	host       string
	port       int
	watch      bool
	debug      bool
	logFormat  string
	stateDir   string
	workspace  string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the hub for the current workspace",
		Long: `Starts the hub for the current workspace.

The hub loads the configuration file, starts every configured MCP server and
serves the MCP control endpoint at http://<host>:<port>/mcp, with /health and
/metrics alongside. The workspace is recorded in the shared registry until the
hub exits.

With --watch (the default) edits to the configuration file are applied while
the hub runs: removed servers are disconnected, new and changed ones are
(re)started.

Configuration file format (JSON, or YAML for .yaml/.yml files):

  {
    "mcpServers": {
      "files": {"command": "mcp-files", "args": ["--root", "."]},
      "search": {"url": "http://localhost:9000/mcp"}
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file (default ~/.config/mcphub/config.yaml)")
	cmd.Flags().StringVar(&opts.host, "host", config.DefaultHost, "Control server host")
	cmd.Flags().IntVarP(&opts.port, "port", "p", config.DefaultPort, "Control server port (0 picks a free port)")
	cmd.Flags().BoolVar(&opts.watch, "watch", true, "Apply configuration file changes while running")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", string(logging.FormatText), "Log format: text or json")
	cmd.Flags().StringVar(&opts.stateDir, "state-dir", "", "Directory holding the workspace registry")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "", "Workspace directory (default: current directory)")

	return cmd
}

// appConfig converts the flags into an application configuration.
func (o *serveOptions) appConfig() (*app.Config, error) {
	format, err := parseLogFormat(o.logFormat)
	if err != nil {
		return nil, err
	}
	if o.port < 0 || o.port > 65535 {
		return nil, fmt.Errorf("invalid port %d", o.port)
	}

	cfg := app.NewConfig()
	cfg.ConfigPath = o.configPath
	cfg.Host = o.host
	cfg.Port = o.port
	cfg.Watch = o.watch
	cfg.Debug = o.debug
	cfg.LogFormat = format
	cfg.StateDir = o.stateDir
	cfg.Workspace = o.workspace
	cfg.Version = GetVersion()
	return cfg, nil
}

func parseLogFormat(s string) (logging.Format, error) {
	switch f := logging.Format(s); f {
	case logging.FormatText, logging.FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported log format %q (valid: text, json)", s)
	}
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := opts.appConfig()
	if err != nil {
		return err
	}
	cfg.LogOutput = cmd.ErrOrStderr()

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}
