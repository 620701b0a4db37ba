package main

import (
	"context"
	"errors"
	"filecoder-backend/controller"
	"filecoder-backend/middleware"
	"filecoder-backend/router"
	"filecoder-backend/service/chat"
	"filecoder-backend/service/mcpserver"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP, WebSocket and MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orchestrator, shutdown, err := buildOrchestrator(cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		gin.SetMode(gin.ReleaseMode)

		origins := middleware.NewOriginPolicy(cfg.Server.AllowedOrigins)
		ctl := controller.New(orchestrator, chat.NewStore(), chat.ModelConfigFrom(cfg.Model), origins.CheckRequest)
		mcpServer := mcpserver.New(orchestrator.Workspace(), Version)

		srv := &http.Server{
			Addr:    cfg.Addr(),
			Handler: router.Register(ctl, mcpserver.NewHTTPHandler(mcpServer), origins),
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("server started", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	},
}
