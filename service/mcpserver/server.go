package mcpserver

import (
	"context"
	"filecoder-backend/service/workspace"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "filecoder"

// New 将工作区工具以 MCP 协议暴露给其他 Agent
func New(ws *workspace.Workspace, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder inside the working directory. Existing folders are left untouched."),
		mcp.WithString("folder_name", mcp.Required(), mcp.Description("Folder path relative to the working directory")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toToolResult(ws.CreateFolder(req.GetString("folder_name", ""))), nil
	})

	s.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create or overwrite a file inside the working directory. Missing parent folders are created."),
		mcp.WithString("file_path", mcp.Required(), mcp.Description("File path relative to the working directory")),
		mcp.WithString("content", mcp.Description("Full file content")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toToolResult(ws.CreateFile(req.GetString("file_path", ""), req.GetString("content", ""))), nil
	})

	s.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List the immediate entries of a folder inside the working directory."),
		mcp.WithString("folder_path", mcp.Description("Folder path relative to the working directory, empty for the root")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toToolResult(ws.ListFiles(req.GetString("folder_path", ""))), nil
	})

	return s
}

func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

func toToolResult(res workspace.Result) *mcp.CallToolResult {
	if res.Status == workspace.StatusFailed {
		return mcp.NewToolResultError(res.String())
	}
	return mcp.NewToolResultText(res.String())
}
