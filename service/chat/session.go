package chat

import (
	"errors"
	"filecoder-backend/config"
	"filecoder-backend/service/workspace"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionBusy = errors.New("session is already processing a message")

type State int

const (
	StateIdle State = iota
	StateProcessing
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateRendering:
		return "rendering"
	}
	return "unknown"
}

// ModelConfig 会话创建时确定，会话存续期间不变
type ModelConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Tracing       bool
	MaxIterations int
	Timeout       time.Duration
}

func ModelConfigFrom(cfg config.ModelConfig) ModelConfig {
	return ModelConfig{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Model:         cfg.Name,
		Tracing:       cfg.Tracing,
		MaxIterations: cfg.MaxIterations,
		Timeout:       cfg.Timeout,
	}
}

type Session struct {
	ID        string
	CreatedAt time.Time
	History   *History
	Model     ModelConfig
	Workspace *workspace.Workspace

	mu    sync.Mutex
	state State
}

func NewSession(model ModelConfig, ws *workspace.Workspace) *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		History:   NewHistory(),
		Model:     model,
		Workspace: ws,
		state:     StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin 开始一轮对话，同一会话同时只能处理一条消息
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrSessionBusy
	}
	s.state = StateProcessing
	return nil
}

func (s *Session) rendering() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateRendering
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
}
