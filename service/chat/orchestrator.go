package chat

import (
	"context"
	"errors"
	"filecoder-backend/config"
	"filecoder-backend/service/workspace"
	"filecoder-backend/utils"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/memory"
)

const (
	welcomeFormat = "🚀 Welcome to FileCoder Pro! Working in directory: %s\n" +
		"I can create files/folders here, generate code, and manage your files. How can I help?"

	processingMessage   = "🔍 Processing your request..."
	criticalErrorFormat = "🔥 Critical Error: %v\n\nPlease check the console for details."
)

var ErrEmptyMessage = errors.New("message is empty")

// Outcome 根据本轮工具调用的结构化结果得出的回复分类
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeError    Outcome = "error"
	OutcomeNeutral  Outcome = "neutral"
	OutcomeCritical Outcome = "critical"
)

func (o Outcome) Prefix() string {
	switch o {
	case OutcomeSuccess:
		return "✅ "
	case OutcomeWarning:
		return "⚠ "
	case OutcomeError:
		return "❌ "
	}
	return ""
}

// classify 任一失败即为错误；否则任一成功即为成功；只有“已存在”时为警告
func classify(calls []ToolCall) Outcome {
	var ok, exists bool
	for _, call := range calls {
		if call.Result == nil {
			continue
		}
		switch call.Result.Status {
		case workspace.StatusFailed:
			return OutcomeError
		case workspace.StatusOK:
			ok = true
		case workspace.StatusAlreadyExists:
			exists = true
		}
	}

	switch {
	case ok:
		return OutcomeSuccess
	case exists:
		return OutcomeWarning
	}
	return OutcomeNeutral
}

// TurnRecord 一轮对话的完整记录，交给归档和审计
type TurnRecord struct {
	SessionID      string     `json:"session_id"`
	Query          string     `json:"query"`
	Answer         string     `json:"answer,omitempty"`
	Rendered       string     `json:"rendered"`
	Outcome        Outcome    `json:"outcome"`
	ImmediateSteps string     `json:"immediate_steps,omitempty"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
}

type Sink interface {
	RecordTurn(record TurnRecord)
}

type Orchestrator struct {
	workspace  *workspace.Workspace
	newModel   ModelFactory
	mcpServers []config.MCPServerConfig
	sinks      []Sink
}

type Option func(*Orchestrator)

func WithModelFactory(f ModelFactory) Option {
	return func(o *Orchestrator) {
		o.newModel = f
	}
}

func WithMCPServers(servers []config.MCPServerConfig) Option {
	return func(o *Orchestrator) {
		o.mcpServers = servers
	}
}

func WithSinks(sinks ...Sink) Option {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sinks...)
	}
}

func NewOrchestrator(ws *workspace.Workspace, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workspace: ws,
		newModel:  NewModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Workspace() *workspace.Workspace {
	return o.workspace
}

// StartSession 创建空会话并返回欢迎语
func (o *Orchestrator) StartSession(cfg ModelConfig) (*Session, string) {
	s := NewSession(cfg, o.workspace)
	slog.Info("session started", "session_id", s.ID, "workspace", o.workspace.Root())
	return s, fmt.Sprintf(welcomeFormat, o.workspace.Root())
}

type turnResult struct {
	answer    string
	steps     string
	toolCalls []ToolCall
}

// HandleMessage 处理一条用户消息。
// 失败的轮次不会在历史中留下任何消息，会话回到空闲状态后可以继续使用。
func (o *Orchestrator) HandleMessage(ctx context.Context, s *Session, text string, r Renderer) error {
	if strings.TrimSpace(text) == "" {
		o.render(r, utils.EventError, "❌ "+ErrEmptyMessage.Error())
		o.render(r, utils.EventDone, "")
		return ErrEmptyMessage
	}

	if err := s.begin(); err != nil {
		o.render(r, utils.EventError, "❌ "+err.Error())
		o.render(r, utils.EventDone, "")
		return err
	}
	defer s.end()

	record := TurnRecord{
		SessionID: s.ID,
		Query:     text,
		StartedAt: time.Now(),
	}

	o.render(r, utils.EventProcessing, processingMessage)

	preTurn := s.History.Len()
	res, err := o.runTurn(ctx, s, text, r)
	record.ImmediateSteps = res.steps
	record.ToolCalls = res.toolCalls

	s.rendering()

	if err != nil {
		s.History.Truncate(preTurn)
		slog.Error("failed to handle message", "session_id", s.ID, "err", err)

		record.Outcome = OutcomeCritical
		record.Error = err.Error()
		record.Rendered = fmt.Sprintf(criticalErrorFormat, err)

		o.render(r, utils.EventError, record.Rendered)
		o.render(r, utils.EventDone, "")
		o.dispatch(record)
		return err
	}

	record.Answer = res.answer
	record.Outcome = classify(res.toolCalls)
	record.Rendered = record.Outcome.Prefix() + res.answer

	o.render(r, utils.EventFinalAnswer, record.Rendered)
	o.render(r, utils.EventDone, "")
	o.dispatch(record)

	return nil
}

func (o *Orchestrator) runTurn(ctx context.Context, s *Session, text string, r Renderer) (turnResult, error) {
	var res turnResult

	llm, err := o.newModel(s.Model)
	if err != nil {
		return res, err
	}

	agent := newAgent(ctx, llm, s, r, o.mcpServers)
	defer func() {
		if err := agent.Close(); err != nil {
			slog.Warn("failed to close mcp clients", "session_id", s.ID, "err", err)
		}
	}()

	history, err := loadHistory(ctx, s.History)
	if err != nil {
		return res, fmt.Errorf("failed to load history: %v", err)
	}

	if err := s.History.AddUserMessage(ctx, text); err != nil {
		return res, err
	}

	answer, err := agent.Call(ctx, history, text, s.Workspace.Root())
	res.steps = agent.StreamHandler.GetImmediateSteps()
	res.toolCalls = agent.ToolCalls()
	if err != nil {
		return res, err
	}

	if err := s.History.AddAIMessage(ctx, answer); err != nil {
		return res, err
	}
	res.answer = answer

	return res, nil
}

// loadHistory 将历史渲染为提示词中的对话记录
func loadHistory(ctx context.Context, h *History) (string, error) {
	buffer := memory.NewConversationBuffer(memory.WithChatHistory(h))

	vars, err := buffer.LoadMemoryVariables(ctx, map[string]any{})
	if err != nil {
		return "", err
	}

	history, _ := vars[buffer.MemoryKey].(string)
	return history, nil
}

func (o *Orchestrator) render(r Renderer, event, data string) {
	if r == nil {
		return
	}
	if err := r.Render(event, data); err != nil {
		slog.Warn("failed to render event", "event", event, "err", err)
	}
}

func (o *Orchestrator) dispatch(record TurnRecord) {
	record.FinishedAt = time.Now()
	for _, sink := range o.sinks {
		sink.RecordTurn(record)
	}
}
