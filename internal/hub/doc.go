// Package hub is the facade the rest of mcphub calls into to manage servers.
//
// A Hub composes a ConfigProvider with an orchestrator.Orchestrator. Initialize
// loads the configuration, optionally watches the configuration file, and starts
// every configured server. When watching, each change detected on disk triggers a
// full reconciliation on a single background goroutine; changes that arrive while
// a reconciliation runs coalesce into one follow-up run.
//
// Errors:
//   - configuration problems surface as config.ConfigurationError, unwrapped
//   - other initialization failures are api.HubError with code HUB_INIT_ERROR
//   - UpdateConfig failures are api.HubError with code CONFIG_UPDATE_ERROR
//
// Everything else (start, stop, connect, disconnect, status, tool calls and
// resource reads) passes straight through to the orchestrator.
package hub
