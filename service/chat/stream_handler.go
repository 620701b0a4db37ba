package chat

import (
	"context"
	"filecoder-backend/utils"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/schema"
)

const (
	// Agent 输出缓冲区大小阈值
	prefixBufferMaxKeep = 10

	// 最终答案的前缀
	finalAnswerPrefix = "AI:"
)

// StreamHandler 将 Agent 的思考步骤和工具调用结果转发给 Renderer。
// 最终答案不在这里发送，由 Orchestrator 分类后统一渲染。
type StreamHandler struct {
	callbacks.SimpleHandler

	renderer Renderer

	// 存储 Agent 的思考步骤
	ImmediateSteps *strings.Builder

	// 缓冲区，用于跨 chunk 识别最终答案的前缀
	prefixBuffer *strings.Builder

	hasFinalAnswer bool

	// 本次规划是否收到过流式输出，不支持流式的模型在动作回调中补发思考步骤
	streamed bool
}

var _ callbacks.Handler = &StreamHandler{}

func NewStreamHandler(renderer Renderer) *StreamHandler {
	return &StreamHandler{
		renderer:       renderer,
		ImmediateSteps: &strings.Builder{},
		prefixBuffer:   &strings.Builder{},
	}
}

func (h *StreamHandler) HandleStreamingFunc(_ context.Context, chunk []byte) {
	h.streamed = true

	if h.hasFinalAnswer {
		return
	}

	h.prefixBuffer.WriteString(string(chunk))
	bufferStr := h.prefixBuffer.String()

	if idx := strings.Index(bufferStr, finalAnswerPrefix); idx != -1 {
		// 前缀前为思考内容
		h.emitSteps(bufferStr[:idx])
		h.prefixBuffer.Reset()
		h.hasFinalAnswer = true
		return
	}

	// 保留最后 prefixBufferMaxKeep 个 rune，防止缓冲区过大
	runes := []rune(bufferStr)
	if len(runes) > prefixBufferMaxKeep {
		h.emitSteps(string(runes[:len(runes)-prefixBufferMaxKeep]))

		h.prefixBuffer.Reset()
		h.prefixBuffer.WriteString(string(runes[len(runes)-prefixBufferMaxKeep:]))
	}
}

func (h *StreamHandler) HandleAgentAction(_ context.Context, action schema.AgentAction) {
	if h.streamed {
		h.flushPrefixBuffer()
	} else {
		h.emitSteps(strings.TrimSpace(action.Log))
	}
	h.endStep()
	h.hasFinalAnswer = false
}

func (h *StreamHandler) HandleAgentFinish(_ context.Context, finish schema.AgentFinish) {
	if h.streamed {
		h.flushPrefixBuffer()
	} else if idx := strings.Index(finish.Log, finalAnswerPrefix); idx != -1 {
		h.emitSteps(strings.TrimSpace(finish.Log[:idx]))
	}
	h.endStep()
}

// 每个规划步骤之间用换行分隔
func (h *StreamHandler) endStep() {
	h.streamed = false
	if s := h.ImmediateSteps.String(); s != "" && !strings.HasSuffix(s, "\n") {
		h.ImmediateSteps.WriteString("\n")
	}
}

func (h *StreamHandler) HandleToolEnd(_ context.Context, result string) {
	h.render(utils.EventToolCallResult, result)
}

func (h *StreamHandler) flushPrefixBuffer() {
	if !h.hasFinalAnswer {
		h.emitSteps(h.prefixBuffer.String())
	}
	h.prefixBuffer.Reset()
}

func (h *StreamHandler) emitSteps(text string) {
	if text == "" {
		return
	}
	h.ImmediateSteps.WriteString(text)
	h.render(utils.EventImmediateSteps, text)
}

func (h *StreamHandler) render(event, data string) {
	if h.renderer == nil {
		return
	}
	if err := h.renderer.Render(event, data); err != nil {
		slog.Warn("failed to render event", "event", event, "err", err)
	}
}

func (h *StreamHandler) GetImmediateSteps() string {
	return h.ImmediateSteps.String()
}
