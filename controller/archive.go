package controller

import (
	"filecoder-backend/dao"
	"filecoder-backend/response"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

func requireArchive(c *gin.Context) bool {
	if dao.Enabled() {
		return true
	}
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.Response{
		Msg: ErrArchiveDisabled.Error(),
	})
	return false
}

func (ctl *Controller) GetArchivedSessions(c *gin.Context) {
	if !requireArchive(c) {
		return
	}

	sessions, err := dao.GetSessions()
	if err != nil {
		slog.Error(ErrGetArchivedSessions.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetArchivedSessions.Error(),
		})
		return
	}

	resp := response.GetArchivedSessionsResponse{
		Sessions: []response.ArchivedSessionResponse{},
	}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, response.ArchivedSessionResponse{
			SessionID: s.SessionID,
			Workspace: s.Workspace,
			CreatedAt: s.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

func (ctl *Controller) GetArchivedMessages(c *gin.Context) {
	if !requireArchive(c) {
		return
	}

	sessionID := c.Param("id")
	messages, err := dao.GetMessagesBySessionID(sessionID)
	if err != nil {
		slog.Error(ErrGetArchivedMessages.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrGetArchivedMessages.Error(),
		})
		return
	}

	resp := response.GetArchivedMessagesResponse{
		Messages: []response.ArchivedMessageResponse{},
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, response.ArchivedMessageResponse{
			CreatedAt:       m.CreatedAt,
			Role:            m.Role,
			Content:         m.Content,
			Outcome:         m.Outcome,
			ImmediateSteps:  m.ImmediateSteps,
			ToolCallResults: m.ToolCallResults,
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

func (ctl *Controller) DeleteArchivedSession(c *gin.Context) {
	if !requireArchive(c) {
		return
	}

	sessionID := c.Param("id")
	if err := dao.DeleteSession(sessionID); err != nil {
		slog.Error(ErrDeleteArchivedSession.Error(), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
			Msg: ErrDeleteArchivedSession.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, response.Response{})
}
