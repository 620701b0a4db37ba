package request

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Query     string `json:"query" binding:"required"`
}

// WSMessage WebSocket 客户端发送的消息
type WSMessage struct {
	Content string `json:"content"`
}
