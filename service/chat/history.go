package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History 会话内的对话记录，只追加；Truncate 仅用于回滚失败轮次的用户消息
type History struct {
	mu       sync.RWMutex
	messages []Message
}

var _ schema.ChatMessageHistory = &History{}

func NewHistory() *History {
	return &History{}
}

func (h *History) Messages(_ context.Context) ([]llms.ChatMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msgs := make([]llms.ChatMessage, 0, len(h.messages))
	for _, m := range h.messages {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, llms.HumanChatMessage{Content: m.Content})
		case RoleAssistant:
			msgs = append(msgs, llms.AIChatMessage{Content: m.Content})
		}
	}

	return msgs, nil
}

func (h *History) AddMessage(_ context.Context, message llms.ChatMessage) error {
	role, err := roleOf(message.GetType())
	if err != nil {
		return err
	}
	h.append(role, message.GetContent())
	return nil
}

func (h *History) AddAIMessage(_ context.Context, text string) error {
	h.append(RoleAssistant, text)
	return nil
}

func (h *History) AddUserMessage(_ context.Context, text string) error {
	h.append(RoleUser, text)
	return nil
}

func (h *History) Clear(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
	return nil
}

func (h *History) SetMessages(_ context.Context, messages []llms.ChatMessage) error {
	converted := make([]Message, 0, len(messages))
	for _, msg := range messages {
		role, err := roleOf(msg.GetType())
		if err != nil {
			return err
		}
		converted = append(converted, Message{Role: role, Content: msg.GetContent()})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = converted
	return nil
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Snapshot 返回当前消息的副本
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Truncate 丢弃第 n 条之后的所有消息
func (h *History) Truncate(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n < len(h.messages) {
		h.messages = h.messages[:n]
	}
}

func (h *History) append(role Role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, Message{Role: role, Content: content})
}

func roleOf(t llms.ChatMessageType) (Role, error) {
	switch t {
	case llms.ChatMessageTypeHuman:
		return RoleUser, nil
	case llms.ChatMessageTypeAI:
		return RoleAssistant, nil
	default:
		return "", fmt.Errorf("unsupported chat message type: %s", t)
	}
}
