// Package workspace implements the cross-process registry of running hubs.
//
// The registry is a JSON document, <state-dir>/workspaces.json, mapping a workspace
// identity (the absolute directory a hub was launched for) to the pid, port and
// start time of the hub serving it:
//
//	{
//	  "/home/dev/project": {"pid": 41872, "port": 8090, "startTime": "2026-03-14T15:09:26.535Z"}
//	}
//
// All hubs on the machine share the document. Every mutation (Register, Deregister,
// CleanupStaleEntries) is a read-modify-write under the companion lock file
// workspaces.json.lock, so no process can drop another workspace's entry.
//
// Entries are removed by their owner on shutdown, or by any process that finds the
// recorded pid is no longer running.
package workspace
