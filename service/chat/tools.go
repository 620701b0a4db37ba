package chat

import (
	"context"
	"encoding/json"
	"filecoder-backend/service/workspace"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/tools"
)

const (
	toolCreateFolder = "create_folder"
	toolCreateFile   = "create_file"
	toolListFiles    = "list_files"
)

// ToolCall 一次工具调用的记录；外部 MCP 工具没有结构化结果
type ToolCall struct {
	Name   string            `json:"name"`
	Input  string            `json:"input"`
	Output string            `json:"output"`
	Result *workspace.Result `json:"result,omitempty"`
}

// toolRecorder 收集本轮对话中的全部工具调用
type toolRecorder struct {
	mu    sync.Mutex
	calls []ToolCall
}

func (r *toolRecorder) record(call ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *toolRecorder) Calls() []ToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ToolCall, len(r.calls))
	copy(out, r.calls)
	return out
}

type workspaceTool struct {
	name        string
	description string
	run         func(input string) workspace.Result

	recorder *toolRecorder
	handler  callbacks.Handler
}

var _ tools.Tool = &workspaceTool{}

func (t *workspaceTool) Name() string {
	return t.name
}

func (t *workspaceTool) Description() string {
	return t.description
}

// Call 工具失败以文本形式返回给模型，不会中断 Agent
func (t *workspaceTool) Call(ctx context.Context, input string) (string, error) {
	if t.handler != nil {
		t.handler.HandleToolStart(ctx, input)
	}

	res := t.run(input)
	out := res.String()

	t.recorder.record(ToolCall{
		Name:   t.name,
		Input:  input,
		Output: out,
		Result: &res,
	})

	if t.handler != nil {
		t.handler.HandleToolEnd(ctx, out)
	}

	return out, nil
}

func newWorkspaceTools(ws *workspace.Workspace, recorder *toolRecorder, handler callbacks.Handler) []tools.Tool {
	return []tools.Tool{
		&workspaceTool{
			name: toolCreateFolder,
			description: `Create a folder inside the working directory. ` +
				`Input: {"folder_name": "<relative path>"}. Parent folders are created as needed; ` +
				`an existing folder is left untouched.`,
			run: func(input string) workspace.Result {
				args, err := parseToolInput(input, "folder_name")
				if err != nil {
					return workspace.Failed(workspace.OpCreateFolder, err.Error())
				}
				return ws.CreateFolder(args["folder_name"])
			},
			recorder: recorder,
			handler:  handler,
		},
		&workspaceTool{
			name: toolCreateFile,
			description: `Create or overwrite a file inside the working directory. ` +
				`Input: {"file_path": "<relative path>", "content": "<full file content>"}. ` +
				`Missing parent folders are created.`,
			run: func(input string) workspace.Result {
				args, err := parseToolInput(input, "")
				if err != nil {
					return workspace.Failed(workspace.OpCreateFile, err.Error())
				}
				return ws.CreateFile(args["file_path"], args["content"])
			},
			recorder: recorder,
			handler:  handler,
		},
		&workspaceTool{
			name: toolListFiles,
			description: `List the immediate entries of a folder inside the working directory. ` +
				`Input: {"folder_path": "<relative path>"}, an empty path lists the working directory itself.`,
			run: func(input string) workspace.Result {
				args, err := parseToolInput(input, "folder_path")
				if err != nil {
					return workspace.Failed(workspace.OpListFiles, err.Error())
				}
				return ws.ListFiles(args["folder_path"])
			},
			recorder: recorder,
			handler:  handler,
		},
	}
}

// parseToolInput 解析模型给出的工具参数。
// 参数应为值全部是字符串的 JSON 对象；单参数工具也接受裸字符串，此时赋给 bareKey。
func parseToolInput(input, bareKey string) (map[string]string, error) {
	input = stripCodeFence(strings.TrimSpace(input))

	if strings.HasPrefix(input, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(input), &raw); err != nil {
			return nil, fmt.Errorf("invalid tool input, expected a JSON object: %v", err)
		}

		args := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				args[k] = val
			case nil:
			default:
				return nil, fmt.Errorf("invalid tool input, argument %q must be a string, got %T", k, v)
			}
		}
		return args, nil
	}

	if bareKey == "" {
		return nil, fmt.Errorf("invalid tool input, expected a JSON object")
	}

	return map[string]string{bareKey: strings.Trim(input, `"'`)}, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// recordedTool 包装外部 MCP 工具，记录调用并把错误转为观察结果
type recordedTool struct {
	tools.Tool

	recorder *toolRecorder
	handler  callbacks.Handler
}

func (t *recordedTool) Call(ctx context.Context, input string) (string, error) {
	if t.handler != nil {
		t.handler.HandleToolStart(ctx, input)
	}

	out, err := t.Tool.Call(ctx, input)
	if err != nil {
		if t.handler != nil {
			t.handler.HandleToolError(ctx, err)
		}
		out = fmt.Sprintf("Error calling %s: %v", t.Name(), err)
	}

	t.recorder.record(ToolCall{
		Name:   t.Name(),
		Input:  input,
		Output: out,
	})

	if t.handler != nil {
		t.handler.HandleToolEnd(ctx, out)
	}

	return out, nil
}
