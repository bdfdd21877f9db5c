package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"mcphub/internal/config"
	"mcphub/internal/workspace"
	"mcphub/pkg/logging"
)

// Control tool names.
const (
	ToolListServers      = "hub_list_servers"
	ToolServerStatus     = "hub_server_status"
	ToolStartServer      = "hub_start_server"
	ToolStopServer       = "hub_stop_server"
	ToolConnectServer    = "hub_connect_server"
	ToolDisconnectServer = "hub_disconnect_server"
	ToolCallTool         = "hub_call_tool"
	ToolReadResource     = "hub_read_resource"
	ToolListWorkspaces   = "hub_list_workspaces"
)

// registerTools registers all control tools
func (s *ControlServer) registerTools() {
	serverName := mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Name of the managed MCP server"),
	)

	s.mcpServer.AddTool(mcp.NewTool(ToolListServers,
		mcp.WithDescription("List all managed MCP servers with their status and capabilities"),
	), s.handleListServers)

	s.mcpServer.AddTool(mcp.NewTool(ToolServerStatus,
		mcp.WithDescription("Get the status of one managed MCP server"),
		serverName,
	), s.handleServerStatus)

	s.mcpServer.AddTool(mcp.NewTool(ToolStartServer,
		mcp.WithDescription("Enable and start a configured MCP server"),
		serverName,
	), s.handleStartServer)

	s.mcpServer.AddTool(mcp.NewTool(ToolStopServer,
		mcp.WithDescription("Stop a configured MCP server"),
		serverName,
		mcp.WithBoolean("disable",
			mcp.Description("Also mark the server disabled in the configuration (default: false)"),
		),
	), s.handleStopServer)

	s.mcpServer.AddTool(mcp.NewTool(ToolConnectServer,
		mcp.WithDescription("Connect an ad-hoc MCP server that is not in the configuration file"),
		serverName,
		mcp.WithObject("config",
			mcp.Required(),
			mcp.Description("Server configuration: type, command, args, env, cwd, url, headers, timeout"),
		),
	), s.handleConnectServer)

	s.mcpServer.AddTool(mcp.NewTool(ToolDisconnectServer,
		mcp.WithDescription("Disconnect a managed MCP server"),
		serverName,
	), s.handleDisconnectServer)

	s.mcpServer.AddTool(mcp.NewTool(ToolCallTool,
		mcp.WithDescription("Call a tool on a managed MCP server"),
		mcp.WithString("server",
			mcp.Required(),
			mcp.Description("Name of the managed MCP server"),
		),
		mcp.WithString("tool",
			mcp.Required(),
			mcp.Description("Name of the tool to call"),
		),
		mcp.WithObject("arguments",
			mcp.Description("Arguments to pass to the tool (as JSON object)"),
		),
	), s.handleCallTool)

	s.mcpServer.AddTool(mcp.NewTool(ToolReadResource,
		mcp.WithDescription("Read a resource from a managed MCP server"),
		mcp.WithString("server",
			mcp.Required(),
			mcp.Description("Name of the managed MCP server"),
		),
		mcp.WithString("uri",
			mcp.Required(),
			mcp.Description("URI of the resource to read"),
		),
	), s.handleReadResource)

	s.mcpServer.AddTool(mcp.NewTool(ToolListWorkspaces,
		mcp.WithDescription("List the hubs running on this machine, keyed by workspace directory"),
	), s.handleListWorkspaces)
}

// jsonResult formats v as an indented JSON text result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *ControlServer) handleListServers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.hub.GetAllServerStatuses())
}

func (s *ControlServer) handleServerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	info, err := s.hub.GetServerStatus(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

func (s *ControlServer) handleStartServer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	info, err := s.hub.StartServer(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start %s: %v", name, err)), nil
	}
	return jsonResult(info)
}

func (s *ControlServer) handleStopServer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}
	disable := request.GetBool("disable", false)

	info, err := s.hub.StopServer(ctx, name, disable)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to stop %s: %v", name, err)), nil
	}
	return jsonResult(info)
}

func (s *ControlServer) handleConnectServer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	raw, ok := request.GetArguments()["config"].(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("config must be a JSON object"), nil
	}
	cfg, err := decodeServerConfig(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid config: %v", err)), nil
	}
	if errs := config.ValidateServerConfig(name, cfg); errs.HasErrors() {
		return mcp.NewToolResultError(errs.Error()), nil
	}

	info, err := s.hub.ConnectServer(ctx, name, cfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to connect %s: %v", name, err)), nil
	}
	logging.Info("ControlServer", "Connected ad-hoc server %s", name)
	return jsonResult(info)
}

// decodeServerConfig converts a tool argument object into a ServerConfig using
// the same field names as the configuration file.
func decodeServerConfig(raw map[string]interface{}) (config.ServerConfig, error) {
	var cfg config.ServerConfig
	data, err := json.Marshal(raw)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *ControlServer) handleDisconnectServer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name argument is required"), nil
	}

	s.hub.DisconnectServer(ctx, name)
	return mcp.NewToolResultText(fmt.Sprintf("Disconnected %s", name)), nil
}

// handleCallTool forwards a tool call and returns the managed server's result
// unchanged, including tool-reported errors.
func (s *ControlServer) handleCallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	server, err := request.RequireString("server")
	if err != nil {
		return mcp.NewToolResultError("server argument is required"), nil
	}
	tool, err := request.RequireString("tool")
	if err != nil {
		return mcp.NewToolResultError("tool argument is required"), nil
	}

	var args map[string]interface{}
	if argsRaw := request.GetArguments()["arguments"]; argsRaw != nil {
		var ok bool
		args, ok = argsRaw.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("arguments must be a JSON object"), nil
		}
	}

	result, err := s.hub.CallTool(ctx, server, tool, args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Tool execution failed: %v", err)), nil
	}
	return result, nil
}

func (s *ControlServer) handleReadResource(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	server, err := request.RequireString("server")
	if err != nil {
		return mcp.NewToolResultError("server argument is required"), nil
	}
	uri, err := request.RequireString("uri")
	if err != nil {
		return mcp.NewToolResultError("uri argument is required"), nil
	}

	result, err := s.hub.ReadResource(ctx, server, uri)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Resource retrieval failed: %v", err)), nil
	}

	var texts []string
	for _, content := range result.Contents {
		if text, ok := mcp.AsTextResourceContents(content); ok {
			texts = append(texts, text.Text)
		} else if blob, ok := mcp.AsBlobResourceContents(content); ok {
			texts = append(texts, fmt.Sprintf("[Binary data: %d bytes]", len(blob.Blob)))
		}
	}

	contents := make([]mcp.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, mcp.NewTextContent(t))
	}
	return &mcp.CallToolResult{Content: contents}, nil
}

func (s *ControlServer) handleListWorkspaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := workspace.Table{}
	if s.workspaces != nil {
		table = s.workspaces.GetActiveWorkspaces()
	}
	return jsonResult(table)
}
