package mcpserver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"mcphub/internal/api"
	"mcphub/internal/config"
	"mcphub/pkg/logging"
)

// NewStdioClient creates a client that launches cfg.Command as a subprocess and
// speaks MCP over its stdin/stdout. The process is started by Initialize.
func NewStdioClient(name string, cfg config.ServerConfig) *TransportClient {
	env := envSlice(cfg.Env)
	return &TransportClient{
		name:      name,
		transport: api.TransportStdio,
		target:    strings.TrimSpace(cfg.Command + " " + strings.Join(cfg.Args, " ")),
		dial: func(ctx context.Context) (*client.Client, error) {
			if cfg.Cwd == "" {
				return client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
			}
			return client.NewStdioMCPClientWithOptions(cfg.Command, env, cfg.Args,
				transport.WithCommandFunc(func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
					cmd := exec.CommandContext(ctx, command, args...)
					cmd.Env = append(os.Environ(), env...)
					cmd.Dir = cfg.Cwd
					return cmd, nil
				}),
			)
		},
		afterInit: func(c *client.Client) {
			forwardStderr(name, c)
		},
	}
}

// envSlice converts an environment map to KEY=VALUE pairs in a stable order.
func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

// forwardStderr copies the subprocess's stderr into the debug log until it closes.
func forwardStderr(name string, c *client.Client) {
	stderr, ok := client.GetStderr(c)
	if !ok || stderr == nil {
		return
	}
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logging.Debug("Connection", "[%s stderr] %s", name, scanner.Text())
		}
	}()
}
