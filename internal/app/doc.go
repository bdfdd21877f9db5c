// Package app bootstraps and runs a hub process.
//
// NewApplication configures logging and wires the workspace registry, the hub,
// its metrics and the MCP control server. Run then brings them up in order:
//
//  1. initialize the workspace registry and drop entries of dead processes
//  2. initialize the hub, which loads the configuration and starts servers
//  3. start the control server
//  4. register this workspace with the control server's port and watch the registry
//  5. notify the service manager (READY=1)
//
// When the run context ends, Run sends STOPPING=1 and stops the control server,
// shuts the hub down and deregisters the workspace. Signal handling belongs to
// the caller.
package app
