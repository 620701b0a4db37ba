package controller

import (
	"filecoder-backend/service/chat"
	"net/http"

	"github.com/gorilla/websocket"
)

// Controller 持有各接口共享的依赖
type Controller struct {
	Orchestrator *chat.Orchestrator
	Store        *chat.Store
	ModelConfig  chat.ModelConfig

	upgrader websocket.Upgrader
}

// New checkOrigin 为空时使用 websocket 默认的同源校验
func New(orchestrator *chat.Orchestrator, store *chat.Store, modelConfig chat.ModelConfig, checkOrigin func(*http.Request) bool) *Controller {
	return &Controller{
		Orchestrator: orchestrator,
		Store:        store,
		ModelConfig:  modelConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}
