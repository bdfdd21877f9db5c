package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	err := NewMCPServerNotFoundError("alpha")
	assert.Equal(t, "MCP server alpha not found", err.Error())
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsNotFound(errors.New("plain")))

	custom := &NotFoundError{Message: "nothing here"}
	assert.Equal(t, "nothing here", custom.Error())
}

func TestServerError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ServerError
		expected string
	}{
		{
			name: "tool call",
			err: func() *ServerError {
				e := NewServerNotFoundError("missing-server", OperationToolCall)
				e.Tool = "x"
				return e
			}(),
			expected: `server "missing-server" not found (operation: tool_call, tool: x)`,
		},
		{
			name: "resource read",
			err: func() *ServerError {
				e := NewServerNotFoundError("docs", OperationResourceRead)
				e.URI = "file:///readme"
				return e
			}(),
			expected: `server "docs" not found (operation: resource_read, uri: file:///readme)`,
		},
		{
			name:     "no operation",
			err:      &ServerError{Server: "bare"},
			expected: `server "bare" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
			assert.True(t, IsServerError(tt.err))
		})
	}
}

func TestServerErrorUnwrapsToNotFound(t *testing.T) {
	err := fmt.Errorf("routing: %w", NewServerConfigNotFoundError("beta", OperationStart))

	assert.True(t, IsServerError(err))
	assert.True(t, IsNotFound(err))

	var serverErr *ServerError
	if assert.ErrorAs(t, err, &serverErr) {
		assert.Equal(t, "beta", serverErr.Server)
		assert.Equal(t, OperationStart, serverErr.Operation)
	}
}

func TestConnectionError(t *testing.T) {
	assert.NoError(t, NewConnectionError("alpha", "connect", nil))

	cause := errors.New("dial refused")
	err := NewConnectionError("alpha", "connect", cause)
	assert.Equal(t, "connection alpha: connect failed: dial refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConnectionError(err))
	assert.False(t, IsNotFound(err))
}

func TestHubError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewHubError(CodeConfigUpdate, "failed to update configuration",
		map[string]interface{}{"source": "path", "attempt": 2}, cause)

	assert.Equal(t, "CONFIG_UPDATE_ERROR: failed to update configuration [attempt=2 source=path]: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeConfigUpdate, HubErrorCode(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, "", HubErrorCode(cause))
	assert.True(t, IsHubError(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsHubError(cause))
}

func TestServerStatusIsServing(t *testing.T) {
	assert.True(t, StatusConnected.IsServing())
	for _, s := range []ServerStatus{StatusConnecting, StatusDisconnected, StatusDisabled, StatusError} {
		assert.False(t, s.IsServing(), string(s))
	}
}
