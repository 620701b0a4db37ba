package controller

import (
	"errors"
	"filecoder-backend/response"
	"filecoder-backend/service/chat"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (ctl *Controller) CreateSession(c *gin.Context) {
	session, welcome := ctl.Orchestrator.StartSession(ctl.ModelConfig)
	ctl.Store.Add(session)

	c.JSON(http.StatusCreated, response.Response{
		Data: response.CreateSessionResponse{
			SessionID: session.ID,
			Welcome:   welcome,
		},
	})
}

func (ctl *Controller) GetSessions(c *gin.Context) {
	resp := response.GetSessionsResponse{
		Sessions: []response.SessionResponse{},
	}
	for _, s := range ctl.Store.List() {
		resp.Sessions = append(resp.Sessions, response.SessionResponse{
			SessionID: s.ID,
			CreatedAt: s.CreatedAt,
			State:     s.State().String(),
			Messages:  s.History.Len(),
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

func (ctl *Controller) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := ctl.Store.Delete(sessionID); err != nil {
		abortWithSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Response{})
}

func (ctl *Controller) GetSessionMessages(c *gin.Context) {
	sessionID := c.Param("id")
	session, err := ctl.Store.Get(sessionID)
	if err != nil {
		abortWithSessionError(c, err)
		return
	}

	resp := response.GetSessionMessagesResponse{
		Messages: []response.MessageResponse{},
	}
	for _, m := range session.History.Snapshot() {
		resp.Messages = append(resp.Messages, response.MessageResponse{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	c.JSON(http.StatusOK, response.Response{
		Data: resp,
	})
}

func abortWithSessionError(c *gin.Context, err error) {
	if errors.Is(err, chat.ErrSessionNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, response.Response{
			Msg: ErrSessionNotFound.Error(),
		})
		return
	}

	slog.Error(ErrGetSessionMessages.Error(), "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
		Msg: ErrGetSessionMessages.Error(),
	})
}
