package controller

import (
	"filecoder-backend/request"
	"filecoder-backend/utils"
	"log/slog"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) AgentChat(c *gin.Context) {
	utils.SetSSEHeaders(c)

	var req request.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error(ErrParseRequest.Error(), "err", err)
		utils.SendSSEMessage(c, utils.EventError, ErrParseRequest.Error())
		utils.SendSSEMessage(c, utils.EventDone, "")
		return
	}

	session, err := ctl.Store.Get(req.SessionID)
	if err != nil {
		slog.Error(ErrSessionNotFound.Error(), "session_id", req.SessionID, "err", err)
		utils.SendSSEMessage(c, utils.EventError, ErrSessionNotFound.Error())
		utils.SendSSEMessage(c, utils.EventDone, "")
		return
	}

	// 错误事件和 done 事件已由 Orchestrator 发送
	renderer := utils.NewSSERenderer(c)
	if err := ctl.Orchestrator.HandleMessage(c.Request.Context(), session, req.Query, renderer); err != nil {
		slog.Error(ErrCallAgent.Error(), "session_id", session.ID, "err", err)
	}
}
