// Package logging provides the structured logging used throughout mcphub.
//
// The package wraps Go's standard slog package behind a small set of
// subsystem-aware helpers so that every log line carries the component that
// produced it:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Orchestrator", "Started %d servers", n)
//	logging.Debug("Workspace", "Registered %s on port %d", identity, port)
//	logging.Warn("Lockfile", "Removing stale lock held by pid %d", pid)
//	logging.Error("Connection", err, "Failed to connect to %s", name)
//
// # Output formats
//
// Init accepts an Options value selecting the level, the handler format
// (FormatText or FormatJSON) and the output writer. InitForCLI is a shortcut
// for text output.
//
// # Subsystems
//
//   - Bootstrap: process startup and shutdown sequence
//   - Config, ConfigWatcher: configuration loading, persistence and file watching
//   - Hub: the facade composing configuration and orchestration
//   - Orchestrator: connection lifecycle and call routing
//   - Connection: a single MCP server connection
//   - Workspace, Lockfile: the cross-process workspace registry
//   - ControlServer: the MCP control surface exposed to hub clients
//
// Before Init is called only warnings and errors are written (to stderr), which
// keeps packages quiet when used as a library or in tests.
//
// # Thread Safety
//
// All functions are safe for concurrent use.
package logging
