// Package api holds the types shared between the hub's layers: connection status
// snapshots and the error taxonomy.
//
// # Errors
//
//   - NotFoundError: a named resource does not exist. Check with IsNotFound.
//   - ServerError: a server (or its configuration) is missing for an operation such
//     as tool_call or resource_read. Unwraps to NotFoundError.
//   - ConnectionError: a failure inside one server connection.
//   - HubError: a wrapped failure carrying a machine-readable code
//     (HUB_INIT_ERROR, CONFIG_UPDATE_ERROR) and context fields.
//
// Configuration errors live in the config package (config.ConfigurationError)
// and are never wrapped by the hub.
package api
