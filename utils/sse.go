package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
)

const (
	EventWelcome        = "welcome"
	EventProcessing     = "processing"
	EventImmediateSteps = "immediate_steps"
	EventToolCallResult = "tool_call_results"
	EventFinalAnswer    = "final_answer"
	EventError          = "error"
	EventDone           = "done"
)

var ErrClientGone = errors.New("client connection closed")

func SetSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}

func SendSSEMessage(c *gin.Context, event string, data any) {
	c.SSEvent(event, data)
	c.Writer.Flush()
}

// SSERenderer 将对话事件写入 SSE 流
type SSERenderer struct {
	c *gin.Context
}

func NewSSERenderer(c *gin.Context) *SSERenderer {
	return &SSERenderer{c: c}
}

func (r *SSERenderer) Render(event, data string) error {
	if r.c.Request.Context().Err() != nil {
		return ErrClientGone
	}
	SendSSEMessage(r.c, event, data)
	return nil
}
