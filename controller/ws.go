package controller

import (
	"encoding/json"
	"filecoder-backend/request"
	"filecoder-backend/utils"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// wsRenderer 以 JSON 帧发送对话事件
type wsRenderer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (r *wsRenderer) Render(event, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn.WriteJSON(wsFrame{Event: event, Data: data})
}

// ChatWebSocket 一个连接对应一个会话，连接关闭时会话随之销毁
func (ctl *Controller) ChatWebSocket(c *gin.Context) {
	conn, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error(ErrUpgradeWebSocket.Error(), "err", err)
		return
	}
	defer conn.Close()

	session, welcome := ctl.Orchestrator.StartSession(ctl.ModelConfig)
	ctl.Store.Add(session)
	defer func() {
		_ = ctl.Store.Delete(session.ID)
		slog.Info("websocket session closed", "session_id", session.ID)
	}()

	renderer := &wsRenderer{conn: conn}
	if err := renderer.Render(utils.EventWelcome, welcome); err != nil {
		slog.Error("failed to send welcome message", "session_id", session.ID, "err", err)
		return
	}

	ctx := c.Request.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed unexpectedly", "session_id", session.ID, "err", err)
			}
			return
		}

		// 非 JSON 消息按纯文本处理
		var msg request.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			msg.Content = string(data)
		}

		if err := ctl.Orchestrator.HandleMessage(ctx, session, msg.Content, renderer); err != nil {
			slog.Error(ErrCallAgent.Error(), "session_id", session.ID, "err", err)
		}
	}
}
