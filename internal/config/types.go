package config

import (
	"reflect"
	"sort"
	"time"

	"mcphub/internal/api"
)

// HubConfig is the hub configuration document.
//
// The same json tags serve YAML documents, which are converted to JSON before decoding.
type HubConfig struct {
	// MCPServers maps a unique server name to its launch or connection parameters.
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// ServerConfig holds the parameters for one managed MCP server.
type ServerConfig struct {
	// Type is the transport. When empty it is inferred: a command means stdio,
	// a URL means streamable-http.
	Type api.TransportType `json:"type,omitempty"`

	// Command, Args, Env and Cwd launch a stdio server.
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`

	// URL and Headers reach a remote server over sse or streamable-http.
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Timeout bounds each request to the server, in seconds.
	Timeout int `json:"timeout,omitempty"`

	// Disabled servers still get a connection so their status is visible, but it
	// never dials the server.
	Disabled bool `json:"disabled,omitempty"`
}

// Transport returns the configured transport, inferring it when Type is empty.
func (c ServerConfig) Transport() api.TransportType {
	if c.Type != "" {
		return c.Type
	}
	if c.Command != "" {
		return api.TransportStdio
	}
	if c.URL != "" {
		return api.TransportStreamableHTTP
	}
	return ""
}

// TimeoutDuration returns the request timeout, applying the default.
func (c ServerConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

// Clone returns a deep copy of the configuration.
func (c HubConfig) Clone() HubConfig {
	out := HubConfig{MCPServers: make(map[string]ServerConfig, len(c.MCPServers))}
	for name, sc := range c.MCPServers {
		out.MCPServers[name] = sc.Clone()
	}
	return out
}

// Clone returns a deep copy of the server configuration.
func (c ServerConfig) Clone() ServerConfig {
	out := c
	if c.Args != nil {
		out.Args = append([]string(nil), c.Args...)
	}
	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// Equal reports whether two documents describe the same servers. A nil server map
// equals an empty one.
func (c HubConfig) Equal(other HubConfig) bool {
	if len(c.MCPServers) == 0 && len(other.MCPServers) == 0 {
		return true
	}
	return reflect.DeepEqual(c.MCPServers, other.MCPServers)
}

// ServerNames returns the configured server names in sorted order.
func (c HubConfig) ServerNames() []string {
	names := make([]string, 0, len(c.MCPServers))
	for name := range c.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
