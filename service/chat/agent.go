package chat

import (
	"context"
	_ "embed"
	"errors"
	"filecoder-backend/config"
	"filecoder-backend/utils"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	mcpadapter "github.com/i2y/langchaingo-mcp-adapter"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"
)

const (
	DefaultMaxIterations = 8

	inputKey         = "input"
	historyKey       = "history"
	workspaceRootKey = "workspace_root"
	outputKey        = "output"
)

var ErrEmptyAnswer = errors.New("agent returned an empty answer")

var mcpHTTPClient *http.Client = utils.DefaultHTTPClient()

var (
	//go:embed prompts/conversational_format_instructions.txt
	conversationalFormatInstructions string

	//go:embed prompts/conversational_prefix.txt
	conversationalPrefix string

	//go:embed prompts/conversational_suffix.txt
	conversationalSuffix string
)

// ModelFactory 按会话的模型配置创建 LLM 客户端
type ModelFactory func(ModelConfig) (llms.Model, error)

// NewModel 通过 OpenAI 兼容接口访问远端模型
func NewModel(cfg ModelConfig) (llms.Model, error) {
	httpOpts := []utils.HTTPClientOption{}
	if cfg.Timeout > 0 {
		httpOpts = append(httpOpts, utils.WithTimeout(cfg.Timeout))
	}

	llm, err := openai.New(
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithHTTPClient(utils.NewHTTPClient(httpOpts...)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %v", err)
	}
	return llm, nil
}

// Agent 单轮对话使用的执行器及其附属资源
type Agent struct {
	Executor      *agents.Executor
	StreamHandler *StreamHandler

	recorder   *toolRecorder
	mcpClients []*client.Client
}

func newAgent(ctx context.Context, llm llms.Model, s *Session, r Renderer, mcpServers []config.MCPServerConfig) *Agent {
	streamHandler := NewStreamHandler(r)

	var handler callbacks.Handler = streamHandler
	if s.Model.Tracing {
		handler = callbacks.CombiningHandler{
			Callbacks: []callbacks.Handler{streamHandler, callbacks.LogHandler{}},
		}
	}

	a := &Agent{
		StreamHandler: streamHandler,
		recorder:      &toolRecorder{},
	}

	agentTools := newWorkspaceTools(s.Workspace, a.recorder, handler)
	agentTools = append(agentTools, a.loadMCPTools(ctx, mcpServers, agentTools, handler)...)

	conversational := agents.NewConversationalAgent(llm, agentTools,
		agents.WithCallbacksHandler(handler),
		agents.WithPromptPrefix(conversationalPrefix),
		agents.WithPromptFormatInstructions(conversationalFormatInstructions),
		agents.WithPromptSuffix(conversationalSuffix),
	)

	maxIterations := s.Model.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	a.Executor = agents.NewExecutor(
		conversational,
		agents.WithCallbacksHandler(handler),
		agents.WithMaxIterations(maxIterations),
		agents.WithParserErrorHandler(agents.NewParserErrorHandler(formatParserError)),
	)

	return a
}

// Call 执行一轮对话，history 为本轮之前的对话记录
func (a *Agent) Call(ctx context.Context, history, query, workspaceRoot string) (string, error) {
	outputs, err := chains.Call(ctx, a.Executor, map[string]any{
		inputKey:         query,
		historyKey:       history,
		workspaceRootKey: workspaceRoot,
	})
	if err != nil {
		return "", err
	}

	answer, _ := outputs[outputKey].(string)
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

func (a *Agent) ToolCalls() []ToolCall {
	return a.recorder.Calls()
}

func (a *Agent) Close() error {
	var errs []error
	for _, c := range a.mcpClients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loadMCPTools 连接配置中的外部 MCP 服务；连接失败只记录日志，不影响本轮对话
func (a *Agent) loadMCPTools(ctx context.Context, servers []config.MCPServerConfig, builtin []tools.Tool, handler callbacks.Handler) []tools.Tool {
	taken := make(map[string]bool)
	for _, t := range builtin {
		taken[t.Name()] = true
	}

	var extra []tools.Tool
	for _, srv := range servers {
		mcpClient, err := createMCPClient(srv)
		if err != nil {
			slog.Error("failed to create mcp client", "server", srv.Name, "err", err)
			continue
		}

		if err := mcpClient.Start(ctx); err != nil {
			slog.Error("failed to init connection to the mcp server", "server", srv.Name, "err", err)
			mcpClient.Close()
			continue
		}
		a.mcpClients = append(a.mcpClients, mcpClient)

		mcpTools, err := getMCPTools(mcpClient, srv.Tools)
		if err != nil {
			slog.Error("failed to get mcp tools", "server", srv.Name, "err", err)
			continue
		}

		for _, t := range mcpTools {
			if taken[t.Name()] {
				slog.Warn("skipping mcp tool with conflicting name", "server", srv.Name, "tool", t.Name())
				continue
			}
			taken[t.Name()] = true
			extra = append(extra, &recordedTool{Tool: t, recorder: a.recorder, handler: handler})
		}
	}

	return extra
}

func createMCPClient(srv config.MCPServerConfig) (*client.Client, error) {
	opts := []transport.StreamableHTTPCOption{
		transport.WithHTTPBasicClient(mcpHTTPClient),
	}
	if len(srv.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(srv.Headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(srv.URL, opts...)
	if err != nil {
		return nil, err
	}
	return mcpClient, nil
}

// 返回配置中选择的工具，未配置时返回全部工具
func getMCPTools(mcpClient *client.Client, toolNames []string) ([]tools.Tool, error) {
	// 初始化与 MCP 服务端的连接
	mcpAdapter, err := mcpadapter.New(mcpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp adapter: %v", err)
	}

	mcpTools, err := mcpAdapter.Tools()
	if err != nil {
		return nil, fmt.Errorf("failed to get mcp tools: %v", err)
	}

	if len(toolNames) == 0 {
		return mcpTools, nil
	}

	toolMap := make(map[string]bool)
	for _, name := range toolNames {
		toolMap[name] = true
	}

	var filteredTools []tools.Tool
	for _, tool := range mcpTools {
		if toolMap[tool.Name()] {
			filteredTools = append(filteredTools, tool)
		}
	}

	return filteredTools, nil
}

func formatParserError(err string) string {
	return "Could not parse your last output: " + err +
		"\nReply with either \"Action:\" and \"Action Input:\" lines or a line starting with \"AI:\"."
}
