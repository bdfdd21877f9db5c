package mcpserver

// Operation names carried by the ConnectionErrors a Connection returns.
const (
	opConnect      = "connect"
	opDisconnect   = "disconnect"
	opCallTool     = "call_tool"
	opReadResource = "read_resource"
)
