package config

import "time"

const (
	// DefaultTimeout is the per-request timeout for servers that do not set one.
	DefaultTimeout = 30 * time.Second

	// DefaultDebounce is the quiet period before a config file change is reloaded.
	DefaultDebounce = 200 * time.Millisecond

	// DefaultHost and DefaultPort are where the control server listens.
	DefaultHost = "localhost"
	DefaultPort = 8090
)

// GetDefaultConfig returns an empty configuration with no servers.
func GetDefaultConfig() HubConfig {
	return HubConfig{MCPServers: map[string]ServerConfig{}}
}
