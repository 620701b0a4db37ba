package router

import (
	"filecoder-backend/controller"
	"filecoder-backend/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Register(ctl *controller.Controller, mcpHandler http.Handler, origins *middleware.OriginPolicy) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORSMiddleware(origins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/ws", ctl.ChatWebSocket)

		api.POST("/session", ctl.CreateSession)
		api.GET("/sessions", ctl.GetSessions)
		api.DELETE("/session/:id", ctl.DeleteSession)
		api.GET("/session/:id/messages", ctl.GetSessionMessages)

		api.POST("/chat", ctl.AgentChat)

		archive := api.Group("/archive")
		{
			archive.GET("/sessions", ctl.GetArchivedSessions)
			archive.GET("/session/:id/messages", ctl.GetArchivedMessages)
			archive.DELETE("/session/:id", ctl.DeleteArchivedSession)
		}
	}

	if mcpHandler != nil {
		r.Any("/mcp", gin.WrapH(mcpHandler))
	}

	return r
}
