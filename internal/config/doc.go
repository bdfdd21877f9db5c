// Package config provides configuration management for mcphub.
//
// The hub is configured by a single document listing the MCP servers it manages:
//
//	mcpServers:
//	  filesystem:
//	    command: npx
//	    args: ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
//	  search:
//	    url: https://search.example.com/mcp
//	    headers:
//	      Authorization: Bearer ${TOKEN}
//	    timeout: 60
//	  legacy:
//	    type: sse
//	    url: http://localhost:9000/sse
//	    disabled: true
//
// Files ending in .yaml or .yml are parsed as YAML; anything else as JSON. Both
// formats share the json struct tags. The default location is
// ~/.config/mcphub/config.yaml.
//
// # Manager
//
// Manager is the hub's configuration provider. It loads and validates the
// document, hands out copies through GetConfig, persists updates made through
// UpdateConfig back to the file, and, once WatchConfig is called, reloads the file
// when it changes on disk and notifies subscribers.
//
// # Errors
//
// Every load, parse and validation failure is a ConfigurationError carrying the
// file path, an error type (io, parse, validation) and suggestions for the user.
// Use IsConfigurationError to detect it.
//
// # State Directory
//
// GetDefaultStateDir resolves where cross-process state lives:
// $XDG_STATE_HOME/mcphub, or ~/.local/state/mcphub.
package config
