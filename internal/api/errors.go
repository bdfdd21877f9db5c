package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NotFoundError represents a resource not found error with contextual information.
// The error includes resource type and name for precise error reporting and
// supports custom error messages for specific use cases.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "MCP server", "server config")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is or wraps a NotFoundError.
//
// Example:
//
//	info, err := hub.GetServerStatus("nonexistent")
//	if api.IsNotFound(err) {
//	    // Handle not found case
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewMCPServerNotFoundError creates an MCP server not found error.
func NewMCPServerNotFoundError(name string) *NotFoundError {
	return NewNotFoundError("MCP server", name)
}

// Operation names carried by ServerError for diagnostics.
const (
	OperationToolCall     = "tool_call"
	OperationResourceRead = "resource_read"
	OperationStart        = "start"
	OperationStop         = "stop"
	OperationStatus       = "status"
)

// ServerError reports that a named server (or its configuration) could not be found
// while performing an operation. It unwraps to a NotFoundError, so IsNotFound holds.
type ServerError struct {
	Server    string
	Operation string
	Tool      string
	URI       string
	Err       error
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "server %q not found", e.Server)
	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Tool != "" {
			fmt.Fprintf(&b, ", tool: %s", e.Tool)
		}
		if e.URI != "" {
			fmt.Fprintf(&b, ", uri: %s", e.URI)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the underlying NotFoundError.
func (e *ServerError) Unwrap() error {
	return e.Err
}

// NewServerNotFoundError builds a ServerError for a missing server.
func NewServerNotFoundError(server, operation string) *ServerError {
	return &ServerError{
		Server:    server,
		Operation: operation,
		Err:       NewMCPServerNotFoundError(server),
	}
}

// NewServerConfigNotFoundError builds a ServerError for a server absent from the configuration.
func NewServerConfigNotFoundError(server, operation string) *ServerError {
	return &ServerError{
		Server:    server,
		Operation: operation,
		Err:       NewNotFoundError("server config", server),
	}
}

// IsServerError reports whether err is or wraps a ServerError.
func IsServerError(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}

// ConnectionError is a failure raised inside a single server connection.
type ConnectionError struct {
	Server string
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %s failed: %v", e.Server, e.Op, e.Err)
}

// Unwrap returns the cause.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError wraps err as a ConnectionError. A nil err yields nil.
func NewConnectionError(server, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Server: server, Op: op, Err: err}
}

// IsConnectionError reports whether err is or wraps a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// Machine-readable codes for HubError.
const (
	CodeHubInit      = "HUB_INIT_ERROR"
	CodeConfigUpdate = "CONFIG_UPDATE_ERROR"
)

// HubError is a generic wrapped error with a machine-readable code and context fields.
type HubError struct {
	Code    string
	Message string
	Fields  map[string]interface{}
	Err     error
}

// Error implements the error interface. Fields are rendered in key order.
func (e *HubError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the original error.
func (e *HubError) Unwrap() error {
	return e.Err
}

// NewHubError creates a HubError.
func NewHubError(code, message string, fields map[string]interface{}, err error) *HubError {
	return &HubError{
		Code:    code,
		Message: message,
		Fields:  fields,
		Err:     err,
	}
}

// HubErrorCode returns the code of the outermost HubError in err's chain, or "".
func HubErrorCode(err error) string {
	var hubErr *HubError
	if errors.As(err, &hubErr) {
		return hubErr.Code
	}
	return ""
}

// IsHubError checks if an error is or wraps a HubError.
func IsHubError(err error) bool {
	var hubErr *HubError
	return errors.As(err, &hubErr)
}
