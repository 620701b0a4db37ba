package mcpserver

import (
	"context"
	"filecoder-backend/service/workspace"
	"os"
	"path/filepath"
	"testing"

	mcpadapter "github.com/i2y/langchaingo-mcp-adapter"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*client.Client, *workspace.Workspace) {
	t.Helper()

	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)

	c, err := client.NewInProcessClient(New(ws, "test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Start(context.Background()))
	return c, ws
}

func initialize(t *testing.T, c *client.Client) {
	t.Helper()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "filecoder-test", Version: "test"}

	_, err := c.Initialize(context.Background(), req)
	require.NoError(t, err)
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestServer_ListTools(t *testing.T) {
	c, _ := newTestClient(t)
	initialize(t, c)

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"create_folder", "create_file", "list_files"}, names)
}

func TestServer_CallTools(t *testing.T) {
	c, ws := newTestClient(t)
	initialize(t, c)

	res := callTool(t, c, "create_folder", map[string]any{"folder_name": "site"})
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Successfully created folder")

	res = callTool(t, c, "create_file", map[string]any{"file_path": "site/app.js", "content": "console.log(1)"})
	assert.False(t, res.IsError)

	data, err := os.ReadFile(filepath.Join(ws.Root(), "site", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))

	res = callTool(t, c, "list_files", map[string]any{"folder_path": "site"})
	assert.Equal(t, "Files in directory:\n📄 app.js", resultText(t, res))

	res = callTool(t, c, "create_file", map[string]any{"file_path": "../outside.js", "content": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "❌ Error creating file")
}

func TestServer_LangchainAdapter(t *testing.T) {
	c, ws := newTestClient(t)

	adapter, err := mcpadapter.New(c)
	require.NoError(t, err)

	tools, err := adapter.Tools()
	require.NoError(t, err)
	require.Len(t, tools, 3)

	for _, tool := range tools {
		if tool.Name() != "create_folder" {
			continue
		}
		_, err := tool.Call(context.Background(), `{"folder_name": "via_adapter"}`)
		require.NoError(t, err)
	}

	info, err := os.Stat(filepath.Join(ws.Root(), "via_adapter"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
