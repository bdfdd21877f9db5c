package app

import (
	"io"
	"os"
	"time"

	"mcphub/internal/config"
	"mcphub/pkg/logging"
)

// DefaultShutdownTimeout bounds the shutdown sequence once the run context ends.
const DefaultShutdownTimeout = 15 * time.Second

// Config holds the application configuration
type Config struct {
	// ConfigPath is the hub configuration file. Empty selects config.GetDefaultConfigPath.
	ConfigPath string

	// Control server listen address. Port 0 picks a free port.
	Host string
	Port int

	// Watch reloads and reconciles when the configuration file changes.
	Watch bool

	// Logging
	Debug     bool
	LogFormat logging.Format
	LogOutput io.Writer

	// StateDir holds the workspace registry. Empty selects config.GetDefaultStateDir.
	StateDir string

	// Workspace overrides the workspace identity, which defaults to the working directory.
	Workspace string

	Version string

	ShutdownTimeout time.Duration
}

// NewConfig creates a new application configuration with defaults applied.
func NewConfig() *Config {
	return &Config{
		Host:            config.DefaultHost,
		Port:            config.DefaultPort,
		Watch:           true,
		LogFormat:       logging.FormatText,
		Version:         "dev",
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// resolve fills in unset fields.
func (c *Config) resolve() error {
	if c.ConfigPath == "" {
		path, err := config.GetDefaultConfigPath()
		if err != nil {
			return err
		}
		c.ConfigPath = path
	}
	if c.Host == "" {
		c.Host = config.DefaultHost
	}
	if c.LogFormat == "" {
		c.LogFormat = logging.FormatText
	}
	if c.LogOutput == nil {
		c.LogOutput = os.Stderr
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return nil
}

func (c *Config) logLevel() logging.LogLevel {
	if c.Debug {
		return logging.LevelDebug
	}
	return logging.LevelInfo
}
